package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings/cache"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("Retention", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(memory.Config{SummaryThreshold: 4})
	})

	Describe("Cleanup", func() {
		It("removes everything with zero days", func() {
			f.alternate("C1", 7, numbered)
			f.alternate("C2", 2, numbered)
			f.addTo("P2", "C3", "user", "other project")
			Expect(f.engine.Stats().TotalSummaries).To(BeNumerically(">", 0))

			res, err := f.engine.Cleanup(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.MessagesRemoved).To(Equal(10))

			st := f.engine.Stats()
			Expect(st.TotalMessages).To(BeZero())
			Expect(st.TotalSummaries).To(BeZero())
			Expect(st.TotalProjects).To(BeZero())
			Expect(st.BufferedMessages).To(BeZero())
			Expect(f.engine.Buffer("P1", "C1")).To(BeEmpty())
			Expect(f.engine.Summaries("P1", "C1")).To(BeEmpty())

			Expect(f.messages.Count(ctx)).To(BeZero())
			Expect(f.summaries.Count(ctx)).To(BeZero())
		})

		It("keeps entities newer than the cutoff", func() {
			old := f.add("C1", "user", "old news")
			f.clock.Advance(10 * 24 * time.Hour)
			fresh := f.add("C1", "user", "fresh news")

			res, err := f.engine.Cleanup(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.MessagesRemoved).To(Equal(1))

			_, ok := f.engine.Message(old)
			Expect(ok).To(BeFalse())
			Expect(f.messages.Has(old)).To(BeFalse())
			Expect(messageIDs(f.engine.Buffer("P1", "C1"))).To(Equal([]string{fresh}))
			Expect(f.engine.Stats().TotalProjects).To(Equal(1))
		})

		It("rejects negative days", func() {
			_, err := f.engine.Cleanup(ctx, -1)
			Expect(err).To(MatchError(memory.ErrInvalidInput))
		})

		It("reports index failures after cleaning memory", func() {
			f.add("C1", "user", "indexed")
			f.messages.DeleteErr = errors.New("index down")

			res, err := f.engine.Cleanup(ctx, 0)
			Expect(err).To(MatchError(ContainSubstring("index down")))
			Expect(res.MessagesRemoved).To(Equal(1))
			Expect(f.engine.Stats().TotalMessages).To(BeZero())
		})

		It("publishes a cleanup event", func() {
			f.add("C1", "user", "bye")
			_, err := f.engine.Cleanup(ctx, 0)
			Expect(err).NotTo(HaveOccurred())

			events := f.publisher.Events()
			last := events[len(events)-1]
			Expect(last.EventType).To(Equal(eventstream.EventTypeCleanupCompleted))
			Expect(last.Cleanup.MessagesRemoved).To(Equal(1))
		})

		It("runs safely alongside writers and readers", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})

			for w := range 4 {
				wg.Add(1)
				go func(w int) {
					defer GinkgoRecover()
					defer wg.Done()
					for i := 0; ; i++ {
						select {
						case <-stop:
							return
						default:
						}
						conv := []string{"C1", "C2"}[w%2]
						f.add(conv, "user", numbered(i))
						_, err := f.engine.BuildContext(ctx, memory.ContextRequest{
							ProjectID: "P1", ConversationID: conv, Query: "weekly sync",
						})
						Expect(err).NotTo(HaveOccurred())
					}
				}(w)
			}

			for range 20 {
				_, err := f.engine.Cleanup(ctx, 0)
				Expect(err).NotTo(HaveOccurred())
			}
			close(stop)
			wg.Wait()

			for _, conv := range []string{"C1", "C2"} {
				Expect(len(f.engine.Buffer("P1", conv))).To(BeNumerically("<", 4))
				for _, m := range f.engine.Buffer("P1", conv) {
					_, ok := f.engine.Message(m.ID)
					Expect(ok).To(BeTrue())
				}
			}
		})
	})

	Describe("Stats", func() {
		It("reports totals and memory efficiency", func() {
			f.alternate("C1", 4, numbered)
			f.addTo("P2", "C2", "user", "   ")

			st := f.engine.Stats()
			Expect(st.TotalMessages).To(Equal(5))
			Expect(st.TotalSummaries).To(Equal(1))
			Expect(st.TotalProjects).To(Equal(2))
			Expect(st.TotalConversations).To(Equal(2))
			Expect(st.BufferedMessages).To(Equal(3))
			Expect(st.MemoryEfficiency).To(BeNumerically("~", 0.2, 1e-9))
			Expect(st.TotalTokens).To(Equal(4 * 9)) // 7 words * 1.3 each
			Expect(st.EmbeddingsEnabled).To(BeTrue())
		})

		It("reports zero efficiency without messages", func() {
			Expect(f.engine.Stats().MemoryEfficiency).To(BeZero())
		})

		It("reports the embedding cache size", func() {
			embedder := cache.New(testutils.NewMockEmbedder())
			e, err := memory.New(memory.Config{},
				memory.WithEmbedder(embedder),
				memory.WithIndices(testutils.NewMockVectorDriver(), testutils.NewMockVectorDriver()),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = e.AddMessage(ctx, memory.MessageInput{Content: "a b", ProjectID: "P", ConversationID: "C"})
			Expect(err).NotTo(HaveOccurred())
			_, err = e.AddMessage(ctx, memory.MessageInput{Content: "a b", ProjectID: "P", ConversationID: "C"})
			Expect(err).NotTo(HaveOccurred())

			Expect(e.Stats().CacheSize).To(Equal(1))
		})
	})

	Describe("Janitor", func() {
		It("sweeps on every tick until cancelled", func() {
			var sweeps atomic.Int32
			cleaner := cleanerFunc(func(_ context.Context, days int) (memory.CleanupResult, error) {
				Expect(days).To(Equal(7))
				sweeps.Add(1)
				return memory.CleanupResult{}, nil
			})

			jctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- memory.NewJanitor(cleaner, 7, 5*time.Millisecond, logger.Nop()).Run(jctx) }()

			Eventually(sweeps.Load).Should(BeNumerically(">=", 2))
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})

		It("keeps running after a failed sweep", func() {
			var sweeps atomic.Int32
			cleaner := cleanerFunc(func(context.Context, int) (memory.CleanupResult, error) {
				sweeps.Add(1)
				return memory.CleanupResult{}, errors.New("boom")
			})

			jctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() { _ = memory.NewJanitor(cleaner, 1, 5*time.Millisecond, nil).Run(jctx) }()

			Eventually(sweeps.Load).Should(BeNumerically(">=", 2))
		})

		It("does nothing with a zero interval", func() {
			var sweeps atomic.Int32
			cleaner := cleanerFunc(func(context.Context, int) (memory.CleanupResult, error) {
				sweeps.Add(1)
				return memory.CleanupResult{}, nil
			})

			jctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- memory.NewJanitor(cleaner, 1, 0, nil).Run(jctx) }()

			Consistently(sweeps.Load, 50*time.Millisecond).Should(BeZero())
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})

type cleanerFunc func(ctx context.Context, days int) (memory.CleanupResult, error)

func (f cleanerFunc) Cleanup(ctx context.Context, days int) (memory.CleanupResult, error) {
	return f(ctx, days)
}

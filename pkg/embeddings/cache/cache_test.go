package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings/cache"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

type countingLimiter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLimiter) Acquire(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.err
}

var _ = Describe("Cache", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		limiter  *countingLimiter
		c        *cache.Cache
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		limiter = &countingLimiter{}
		c = cache.New(embedder, cache.WithLimiter(limiter), cache.WithMaxEntries(3))
	})

	It("calls the provider once for repeated text", func() {
		first, err := c.GetEmbedding(ctx, "hello world")
		Expect(err).NotTo(HaveOccurred())

		second, err := c.GetEmbedding(ctx, "hello world")
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
		Expect(embedder.Calls()).To(Equal(1))
		Expect(limiter.calls).To(Equal(1))

		hits, misses := c.HitsMisses()
		Expect(hits).To(Equal(uint64(1)))
		Expect(misses).To(Equal(uint64(1)))
	})

	It("keys entries by exact content", func() {
		_, _ = c.GetEmbedding(ctx, "hello")
		_, _ = c.GetEmbedding(ctx, "Hello")
		Expect(embedder.Calls()).To(Equal(2))
		Expect(c.Len()).To(Equal(2))
	})

	It("evicts the oldest written entry when full", func() {
		for i := range 4 {
			_, err := c.GetEmbedding(ctx, fmt.Sprintf("text %d", i))
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(c.Len()).To(Equal(3))

		// "text 0" was evicted, "text 3" is still cached.
		_, _ = c.GetEmbedding(ctx, "text 3")
		Expect(embedder.Calls()).To(Equal(4))
		_, _ = c.GetEmbedding(ctx, "text 0")
		Expect(embedder.Calls()).To(Equal(5))
	})

	It("does not refresh position on reads", func() {
		_, _ = c.GetEmbedding(ctx, "a")
		_, _ = c.GetEmbedding(ctx, "b")
		_, _ = c.GetEmbedding(ctx, "c")
		_, _ = c.GetEmbedding(ctx, "a")
		_, _ = c.GetEmbedding(ctx, "d")

		calls := embedder.Calls()
		_, _ = c.GetEmbedding(ctx, "a")
		Expect(embedder.Calls()).To(Equal(calls + 1))
	})

	It("does not cache failures", func() {
		embedder.SetErr(errors.New("provider down"))
		_, err := c.GetEmbedding(ctx, "hello")
		Expect(err).To(MatchError("provider down"))
		Expect(c.Len()).To(Equal(0))

		embedder.SetErr(nil)
		_, err = c.GetEmbedding(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(1))
	})

	It("skips the provider when the limiter refuses", func() {
		limiter.err = context.Canceled
		_, err := c.GetEmbedding(ctx, "hello")
		Expect(err).To(MatchError(context.Canceled))
		Expect(embedder.Calls()).To(Equal(0))
	})

	It("collapses concurrent misses for the same text", func() {
		embedder.Delay = 50 * time.Millisecond

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := c.GetEmbedding(ctx, "same text")
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		Expect(embedder.Calls()).To(Equal(1))
	})

	It("keeps serving waiting callers when the first caller cancels", func() {
		embedder.Delay = 200 * time.Millisecond

		leaderCtx, cancel := context.WithCancel(ctx)
		leaderErr := make(chan error, 1)
		go func() {
			_, err := c.GetEmbedding(leaderCtx, "shared text")
			leaderErr <- err
		}()
		Eventually(embedder.Calls).Should(Equal(1))

		followerErr := make(chan error, 1)
		go func() {
			_, err := c.GetEmbedding(context.Background(), "shared text")
			followerErr <- err
		}()

		cancel()
		Eventually(leaderErr).Should(Receive(MatchError(context.Canceled)))
		Eventually(followerErr, time.Second).Should(Receive(BeNil()))
		Expect(embedder.Calls()).To(Equal(1))
		Expect(c.Len()).To(Equal(1))
	})

	It("returns immediately for an already cancelled caller", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := c.GetEmbedding(cctx, "hello")
		Expect(err).To(MatchError(context.Canceled))
		Expect(embedder.Calls()).To(Equal(0))
	})

	It("bounds the shared call with the call timeout", func() {
		c = cache.New(embedder, cache.WithCallTimeout(20*time.Millisecond))
		embedder.Delay = time.Second

		_, err := c.GetEmbedding(ctx, "slow text")
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(c.Len()).To(Equal(0))
	})

	It("can be reset and closed", func() {
		_, _ = c.Embed(ctx, "hello")
		c.Reset()
		Expect(c.Len()).To(Equal(0))

		Expect(c.Close()).To(Succeed())
		Expect(embedder.Closed()).To(BeTrue())
	})
})

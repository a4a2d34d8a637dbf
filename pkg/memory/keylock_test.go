package memory

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("keyLock", func() {
	It("serializes holders of the same key", func() {
		k := newKeyLock[string]()
		var (
			mu      sync.Mutex
			active  int
			maxSeen int
			wg      sync.WaitGroup
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := k.Lock("c1")
				mu.Lock()
				active++
				maxSeen = max(maxSeen, active)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		Expect(maxSeen).To(Equal(1))
		Expect(k.size()).To(BeZero())
	})

	It("does not block different keys", func() {
		k := newKeyLock[string]()
		unlock := k.Lock("c1")
		defer unlock()

		done := make(chan struct{})
		go func() {
			k.Lock("c2")()
			close(done)
		}()
		Eventually(done).Should(BeClosed())
	})
})

var _ = Describe("responseCache", func() {
	It("is disabled without a TTL", func() {
		c, err := newResponseCache(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeNil())

		c.set("k", ContextWindow{TotalTokens: 1})
		_, ok := c.get("k")
		Expect(ok).To(BeFalse())
		c.clear()
		c.close()
	})

	It("stores windows per generation", func() {
		c, err := newResponseCache(time.Minute)
		Expect(err).NotTo(HaveOccurred())
		defer c.close()

		req := ContextRequest{ProjectID: "p", ConversationID: "c", Query: "q", MaxTokens: 10}
		c.set(responseKey(1, req), ContextWindow{TotalTokens: 7})
		c.wait()

		w, ok := c.get(responseKey(1, req))
		Expect(ok).To(BeTrue())
		Expect(w.TotalTokens).To(Equal(7))

		_, ok = c.get(responseKey(2, req))
		Expect(ok).To(BeFalse())
	})

	It("hands out windows that do not alias the cached entry", func() {
		c, err := newResponseCache(time.Minute)
		Expect(err).NotTo(HaveOccurred())
		defer c.close()

		stored := ContextWindow{
			RecentMessages:    []Message{{ID: "m1"}},
			RelevantSummaries: []ConversationSummary{{ID: "s1"}},
		}
		c.set("k", stored)
		c.wait()
		stored.RecentMessages[0].ID = "changed by writer"

		first, ok := c.get("k")
		Expect(ok).To(BeTrue())
		first.RecentMessages[0].ID = "changed by reader"
		first.RelevantSummaries[0].ID = "changed by reader"

		second, ok := c.get("k")
		Expect(ok).To(BeTrue())
		Expect(second.RecentMessages[0].ID).To(Equal("m1"))
		Expect(second.RelevantSummaries[0].ID).To(Equal("s1"))
	})
})

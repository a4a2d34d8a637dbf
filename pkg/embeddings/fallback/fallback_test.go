package fallback_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/fallback"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("Embedder", func() {
	var (
		ctx           context.Context
		first, second *testutils.MockEmbedder
		e             *fallback.Embedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		first = testutils.NewMockEmbedder()
		second = testutils.NewMockEmbedder()
		e = fallback.New(nil,
			fallback.Provider{Name: "first", Embedder: first},
			fallback.Provider{Name: "second", Embedder: second},
		)
	})

	It("short-circuits on the first success", func() {
		_, err := e.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Calls()).To(Equal(1))
		Expect(second.Calls()).To(Equal(0))
	})

	It("falls through to the next provider", func() {
		first.SetErr(errors.New("first down"))
		second.Embeddings["hello"] = []float32{1, 2}

		emb, err := e.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{1, 2}))
	})

	It("joins every failure", func() {
		first.SetErr(embeddings.ErrUnavailable)
		second.SetErr(errors.New("second down"))

		_, err := e.Embed(ctx, "hello")
		Expect(err).To(MatchError(embeddings.ErrUnavailable))
		Expect(err.Error()).To(ContainSubstring("first"))
		Expect(err.Error()).To(ContainSubstring("second down"))
	})

	It("stops on a cancelled context", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Embed(cctx, "hello")
		Expect(err).To(MatchError(context.Canceled))
		Expect(first.Calls()).To(Equal(0))
	})

	It("reports unavailability with no providers", func() {
		_, err := fallback.New(nil).Embed(ctx, "hello")
		Expect(err).To(MatchError(embeddings.ErrUnavailable))
	})

	It("closes every provider", func() {
		Expect(e.Close()).To(Succeed())
		Expect(first.Closed()).To(BeTrue())
		Expect(second.Closed()).To(BeTrue())
	})
})

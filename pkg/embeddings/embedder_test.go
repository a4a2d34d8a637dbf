package embeddings_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("Unavailable", func() {
	It("reports ErrUnavailable with its reason", func() {
		e := embeddings.Unavailable{Reason: "no provider configured"}
		_, err := e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(embeddings.ErrUnavailable))
		Expect(err.Error()).To(ContainSubstring("no provider configured"))
		Expect(e.Close()).To(Succeed())
	})

	DescribeTable("IsAvailable",
		func(e embeddings.Embedder, expected bool) {
			Expect(embeddings.IsAvailable(e)).To(Equal(expected))
		},
		Entry("nil", nil, false),
		Entry("value", embeddings.Unavailable{}, false),
		Entry("pointer", &embeddings.Unavailable{}, false),
		Entry("real embedder", testutils.NewMockEmbedder(), true),
	)
})

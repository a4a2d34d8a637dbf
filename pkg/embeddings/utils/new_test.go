package embeddingutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/fallback"
	"github.com/papercomputeco/recall/pkg/embeddings/ollama"
	embeddingutils "github.com/papercomputeco/recall/pkg/embeddings/utils"
)

var _ = Describe("NewEmbedder", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "")
	})

	It("builds a single ollama embedder", func() {
		e := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			TargetURL:    "http://localhost:11434",
		})
		Expect(e).To(BeAssignableToTypeOf(&ollama.Embedder{}))
		Expect(embeddings.IsAvailable(e)).To(BeTrue())
	})

	It("chains fallbacks that initialize", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")
		e := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			Fallbacks:    []string{"openai"},
		})
		Expect(e).To(BeAssignableToTypeOf(&fallback.Embedder{}))
	})

	It("skips fallbacks that cannot initialize", func() {
		e := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			Fallbacks:    []string{"openai"},
		})
		Expect(e).To(BeAssignableToTypeOf(&ollama.Embedder{}))
	})

	It("returns Unavailable when nothing can be built", func() {
		e := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: "bogus",
			Fallbacks:    []string{"openai"},
		})
		Expect(embeddings.IsAvailable(e)).To(BeFalse())

		u, ok := e.(embeddings.Unavailable)
		Expect(ok).To(BeTrue())
		Expect(u.Reason).To(ContainSubstring("unsupported embedding provider: bogus"))
		Expect(u.Reason).To(ContainSubstring("API key"))
	})
})

package snapshotutils_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/snapshot/file"
	"github.com/papercomputeco/recall/pkg/snapshot/sqlstore"
	snapshotutils "github.com/papercomputeco/recall/pkg/snapshot/utils"
)

var _ = Describe("NewStore", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
	})

	It("defaults to a file in the config directory", func() {
		s, err := snapshotutils.NewStore(ctx, &snapshotutils.NewStoreOpts{ConfigDir: dir})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&file.Store{}))

		abs, err := filepath.Abs(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.(*file.Store).Path()).To(Equal(filepath.Join(abs, snapshotutils.DefaultFileName)))
	})

	It("honors an explicit file target", func() {
		target := filepath.Join(dir, "x.json")
		s, err := snapshotutils.NewStore(ctx, &snapshotutils.NewStoreOpts{ProviderType: "file", Target: target})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.(*file.Store).Path()).To(Equal(target))
	})

	It("opens a sqlite store", func() {
		s, err := snapshotutils.NewStore(ctx, &snapshotutils.NewStoreOpts{ProviderType: "sqlite", ConfigDir: dir})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&sqlstore.Store{}))
		Expect(s.Close()).To(Succeed())
	})

	It("returns nil for none", func() {
		s, err := snapshotutils.NewStore(ctx, &snapshotutils.NewStoreOpts{ProviderType: "none"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNil())
	})

	It("requires a DSN for postgres", func() {
		_, err := snapshotutils.NewStore(ctx, &snapshotutils.NewStoreOpts{ProviderType: "postgres"})
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		_, err := snapshotutils.NewStore(ctx, &snapshotutils.NewStoreOpts{ProviderType: "s3"})
		Expect(err).To(MatchError(ContainSubstring("unsupported snapshot provider: s3")))
	})
})

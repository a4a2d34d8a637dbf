package file_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/snapshot"
	"github.com/papercomputeco/recall/pkg/snapshot/file"
)

func sampleSnapshot() *memory.Snapshot {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &memory.Snapshot{
		Version:   memory.SnapshotVersion,
		CreatedAt: ts,
		Messages: []memory.Message{{
			ID: "m1", ProjectID: "P1", ConversationID: "C1", Sender: "user",
			Content: "hello", Timestamp: ts, TokenEstimate: 1,
		}},
		Summaries: []memory.ConversationSummary{{
			ID: "s1", ProjectID: "P1", ConversationID: "C1",
			SourceMessageIDs: []string{"m0"}, SummaryText: "user: hi", Timestamp: ts,
			Participants: []string{"user"}, Topics: []string{},
		}},
	}
}

var _ = Describe("Store", func() {
	var (
		ctx  context.Context
		path string
	)

	BeforeEach(func() {
		ctx = context.Background()
		path = filepath.Join(GinkgoT().TempDir(), "nested", "snapshot.json")
	})

	It("requires a path", func() {
		_, err := file.NewStore("", nil)
		Expect(err).To(HaveOccurred())
	})

	It("reports ErrNotFound before the first save", func() {
		s, err := file.NewStore(path, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Load(ctx)
		Expect(err).To(MatchError(snapshot.ErrNotFound))
	})

	It("saves and loads the latest snapshot", func() {
		s, err := file.NewStore(path, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Path()).To(Equal(path))

		first := sampleSnapshot()
		Expect(s.Save(ctx, first)).To(Succeed())

		second := sampleSnapshot()
		second.Messages = nil
		Expect(s.Save(ctx, second)).To(Succeed())

		loaded, err := s.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Messages).To(BeEmpty())
		Expect(loaded.Summaries[0].SummaryText).To(Equal("user: hi"))
		Expect(loaded.CreatedAt.Equal(first.CreatedAt)).To(BeTrue())

		entries, err := os.ReadDir(filepath.Dir(path))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("writes ISO-8601 timestamps", func() {
		s, err := file.NewStore(path, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Save(ctx, sampleSnapshot())).To(Succeed())

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"timestamp": "2026-01-02T03:04:05Z"`))
	})

	It("fails on corrupt files", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte("{not json"), 0o600)).To(Succeed())

		s, err := file.NewStore(path, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Load(ctx)
		Expect(err).To(MatchError(ContainSubstring("decoding snapshot")))
	})
})

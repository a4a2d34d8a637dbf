package sqlstore_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/snapshot"
	"github.com/papercomputeco/recall/pkg/snapshot/sqlstore"
)

func snapshotWith(n int) *memory.Snapshot {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := &memory.Snapshot{Version: memory.SnapshotVersion, CreatedAt: ts}
	for i := range n {
		snap.Messages = append(snap.Messages, memory.Message{
			ID: string(rune('a' + i)), ProjectID: "P1", ConversationID: "C1",
			Sender: "user", Content: "hello", Timestamp: ts,
		})
	}
	return snap
}

func behavesLikeStore(open func() *sqlstore.Store) {
	var (
		ctx   context.Context
		store *sqlstore.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = open()
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
	})

	It("reports ErrNotFound when empty", func() {
		_, err := store.Load(ctx)
		Expect(err).To(MatchError(snapshot.ErrNotFound))
	})

	It("loads the most recent snapshot", func() {
		Expect(store.Save(ctx, snapshotWith(1))).To(Succeed())
		Expect(store.Save(ctx, snapshotWith(3))).To(Succeed())

		loaded, err := store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Messages).To(HaveLen(3))
		Expect(loaded.Messages[2].ID).To(Equal("c"))
	})

	It("rejects nil snapshots", func() {
		Expect(store.Save(ctx, nil)).NotTo(Succeed())
	})
}

var _ = Describe("Store", func() {
	It("rejects unknown dialects", func() {
		_, err := sqlstore.NewStore(context.Background(), sqlstore.Config{Dialect: "oracle"}, nil)
		Expect(err).To(MatchError(ContainSubstring("unsupported snapshot dialect")))
	})

	Context("sqlite", func() {
		behavesLikeStore(func() *sqlstore.Store {
			s, err := sqlstore.NewStore(context.Background(), sqlstore.Config{
				Dialect: sqlstore.DialectSQLite,
				DSN:     ":memory:",
				Keep:    2,
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			return s
		})

		It("prunes history beyond Keep", func() {
			ctx := context.Background()
			s, err := sqlstore.NewStore(ctx, sqlstore.Config{Dialect: sqlstore.DialectSQLite, DSN: ":memory:", Keep: 2}, nil)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			for i := range 5 {
				Expect(s.Save(ctx, snapshotWith(i))).To(Succeed())
			}
			Expect(s.Count(ctx)).To(Equal(2))

			loaded, err := s.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Messages).To(HaveLen(4))
		})
	})

	Context("postgres", func() {
		behavesLikeStore(func() *sqlstore.Store {
			dsn := os.Getenv("RECALL_TEST_POSTGRES_DSN")
			if dsn == "" {
				Skip("RECALL_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
			}
			ctx := context.Background()
			s, err := sqlstore.NewStore(ctx, sqlstore.Config{Dialect: sqlstore.DialectPostgres, DSN: dsn}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Purge(ctx)).To(Succeed())
			return s
		})
	})
})

//go:build !libsql

package sqlitevec_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/sqlitevec"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sqlitevec.Driver
		ts     time.Time
	)

	newDriver := func() *sqlitevec.Driver {
		d, err := sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 4,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	BeforeEach(func() {
		ctx = context.Background()
		ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{Dimensions: 4}, nil)
			Expect(err).To(MatchError(ContainSubstring("database path is required")))
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject unsafe table prefixes", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4, Table: "x; DROP"}, nil)
			Expect(err).To(MatchError(ContainSubstring("invalid table prefix")))
		})

		It("should create a driver with an in-memory database", func() {
			d := newDriver()
			Expect(d.Close()).To(Succeed())
		})
	})

	Context("with documents", func() {
		BeforeEach(func() {
			driver = newDriver()
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "m1", Kind: vector.KindMessage, ProjectID: "p1", ConversationID: "c1", Timestamp: ts, Embedding: []float32{1, 0, 0, 0}},
				{ID: "m2", Kind: vector.KindMessage, ProjectID: "p1", ConversationID: "c2", Timestamp: ts, Embedding: []float32{0.9, 0.1, 0, 0}},
				{ID: "m3", Kind: vector.KindMessage, ProjectID: "p2", ConversationID: "c3", Timestamp: ts, Embedding: []float32{0, 1, 0, 0}},
				{ID: "m4", Kind: vector.KindMessage, ProjectID: "p2", ConversationID: "c3", Timestamp: ts, Embedding: []float32{0, 0, 1, 0}},
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("counts documents", func() {
			Expect(driver.Count(ctx)).To(Equal(4))
		})

		It("returns the closest documents with cosine scores", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 2, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("m1"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.001))
			Expect(results[1].ID).To(Equal("m2"))
			Expect(results[0].ProjectID).To(Equal("p1"))
			Expect(results[0].Timestamp).To(BeTemporally("==", ts))
		})

		It("applies project filters", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 10, vector.Filter{ProjectID: "p2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.ProjectID).To(Equal("p2"))
			}
		})

		It("applies conversation filters in score order", func() {
			results, err := driver.Query(ctx, []float32{0, 0, 1, 0}, 10, vector.Filter{ConversationID: "c3"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("m4"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		})

		It("defaults topK to 10 when zero or negative", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 0, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
		})

		It("rejects embeddings with the wrong dimensions", func() {
			_, err := driver.Query(ctx, []float32{1, 0}, 2, vector.Filter{})
			Expect(err).To(MatchError(vector.ErrDimensions))

			err = driver.Add(ctx, []vector.Document{{ID: "bad", Embedding: []float32{1}}})
			Expect(err).To(MatchError(vector.ErrDimensions))
		})

		It("updates an existing document", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "m1", Kind: vector.KindSummary, ProjectID: "p9", Embedding: []float32{0, 0, 0, 1}},
			})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"m1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Kind).To(Equal(vector.KindSummary))
			Expect(docs[0].ProjectID).To(Equal("p9"))
			Expect(docs[0].Embedding).To(Equal([]float32{0, 0, 0, 1}))
			Expect(driver.Count(ctx)).To(Equal(4))
		})

		It("gets documents with embeddings, skipping unknown IDs", func() {
			docs, err := driver.Get(ctx, []string{"m3", "nonexistent"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("m3"))
			Expect(docs[0].Embedding).To(Equal([]float32{0, 1, 0, 0}))
		})

		It("returns nil for empty IDs", func() {
			docs, err := driver.Get(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeNil())
		})

		It("removes deleted documents from query results", func() {
			Expect(driver.Delete(ctx, []string{"m1", "nonexistent"})).To(Succeed())
			Expect(driver.Count(ctx)).To(Equal(3))

			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 10, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for _, r := range results {
				Expect(r.ID).NotTo(Equal("m1"))
			}
		})
	})

	It("returns an empty result for an empty index", func() {
		d := newDriver()
		defer d.Close()

		results, err := d.Query(ctx, []float32{1, 0, 0, 0}, 5, vector.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("keeps indices with different tables apart", func() {
		d1, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4, Table: "messages"}, nil)
		Expect(err).NotTo(HaveOccurred())
		defer d1.Close()

		Expect(d1.Add(ctx, []vector.Document{{ID: "a", Embedding: []float32{1, 0, 0, 0}}})).To(Succeed())
		Expect(d1.Count(ctx)).To(Equal(1))
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*sqlitevec.Driver)(nil)
		})
	})
})

package snapshotcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/api"
	snapshotcmder "github.com/papercomputeco/recall/cmd/recall/snapshot"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("snapshot commands", func() {
	var (
		engine    *memory.Engine
		srv       *httptest.Server
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		engine, err = memory.New(memory.DefaultConfig(),
			memory.WithEmbedder(testutils.NewMockEmbedder()),
			memory.WithIndices(testutils.NewMockVectorDriver(), testutils.NewMockVectorDriver()),
			memory.WithLogger(logger.Nop()),
		)
		Expect(err).NotTo(HaveOccurred())

		server, err := api.NewServer(api.Config{}, engine, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		srv = httptest.NewServer(server.Handler())

		_, err = engine.AddMessage(context.Background(), memory.MessageInput{
			Content: "keep this around", ProjectID: "P1", ConversationID: "C1", Sender: "alice",
		})
		Expect(err).NotTo(HaveOccurred())

		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		srv.Close()
		Expect(engine.Close()).To(Succeed())
	})

	run := func(args ...string) error {
		root := &cobra.Command{Use: "recall"}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(snapshotcmder.NewSnapshotCmd())
		root.SetOut(out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append(args, "--config-dir", configDir, "--api-target", srv.URL))
		return root.Execute()
	}

	It("exports to stdout", func() {
		Expect(run("snapshot", "export")).To(Succeed())

		var snap memory.Snapshot
		Expect(json.Unmarshal(out.Bytes(), &snap)).To(Succeed())
		Expect(snap.Messages).To(HaveLen(1))
		Expect(snap.Messages[0].Content).To(Equal("keep this around"))
	})

	It("exports to a file and imports it back", func() {
		path := filepath.Join(configDir, "snap.json")
		Expect(run("snapshot", "export", "-o", path)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Wrote 1 messages and 0 summaries"))

		_, err := engine.Cleanup(context.Background(), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Stats().TotalMessages).To(Equal(0))

		out.Reset()
		Expect(run("snapshot", "import", path)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("messages"))
		Expect(engine.Stats().TotalMessages).To(Equal(1))
	})

	It("fails on unreadable files", func() {
		Expect(run("snapshot", "import", filepath.Join(configDir, "missing.json"))).To(MatchError(ContainSubstring("reading snapshot")))
	})

	It("fails on snapshots the server rejects", func() {
		path := filepath.Join(configDir, "bad.json")
		Expect(os.WriteFile(path, []byte(`{"version": 7}`), 0o600)).To(Succeed())
		Expect(run("snapshot", "import", path)).To(MatchError(ContainSubstring("HTTP 400")))
	})
})

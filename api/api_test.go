package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

func newTestServer() (*Server, *memory.Engine) {
	engine, err := memory.New(memory.DefaultConfig(),
		memory.WithEmbedder(testutils.NewMockEmbedder()),
		memory.WithIndices(testutils.NewMockVectorDriver(), testutils.NewMockVectorDriver()),
		memory.WithLogger(logger.Nop()),
	)
	Expect(err).NotTo(HaveOccurred())

	server, err := NewServer(Config{ListenAddr: ":0"}, engine, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return server, engine
}

func doJSON(server *Server, method, path string, body any) *http.Response {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, r)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var (
		server *Server
		engine *memory.Engine
	)

	BeforeEach(func() {
		server, engine = newTestServer()
	})

	AfterEach(func() {
		Expect(engine.Close()).To(Succeed())
	})

	It("requires an engine", func() {
		_, err := NewServer(Config{}, nil, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("memory engine is required")))
	})

	It("answers ping", func() {
		resp := doJSON(server, http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(decode[string](resp)).To(Equal("pong"))
	})

	Describe("POST /v1/messages", func() {
		It("stores the message and returns its id", func() {
			resp := doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content:        "hello there",
				ProjectID:      "P1",
				ConversationID: "C1",
				Sender:         "alice",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			out := decode[AddMessageResponse](resp)
			Expect(out.ID).NotTo(BeEmpty())

			msg, ok := engine.Message(out.ID)
			Expect(ok).To(BeTrue())
			Expect(msg.Content).To(Equal("hello there"))
		})

		It("rejects messages without identifiers", func() {
			resp := doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{Content: "orphan"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(decode[ErrorResponse](resp).Error).To(ContainSubstring("invalid input"))
		})

		It("rejects malformed bodies", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString("{"))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("POST /v1/context", func() {
		It("renders recent messages", func() {
			doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content: "first message", ProjectID: "P1", ConversationID: "C1", Sender: "alice",
			})

			resp := doJSON(server, http.MethodPost, "/v1/context", memory.ContextRequest{
				ProjectID: "P1", ConversationID: "C1",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			w := decode[memory.ContextWindow](resp)
			Expect(w.RecentMessages).To(HaveLen(1))
			Expect(w.Text).To(ContainSubstring("alice: first message"))
			Expect(w.MaxTokens).To(Equal(memory.DefaultConfig().MaxTokens))
		})

		It("returns an empty window for an unknown conversation", func() {
			resp := doJSON(server, http.MethodPost, "/v1/context", memory.ContextRequest{
				ProjectID: "P1", ConversationID: "nobody",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[memory.ContextWindow](resp).Text).To(Equal("[Context tokens: 0]"))
		})

		It("requires a conversation id", func() {
			resp := doJSON(server, http.MethodPost, "/v1/context", memory.ContextRequest{ProjectID: "P1"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /v1/search", func() {
		BeforeEach(func() {
			doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content: "deploy the kafka cluster tonight", ProjectID: "P1", ConversationID: "C1", Sender: "alice",
			})
			doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content: "lunch options near the office", ProjectID: "P1", ConversationID: "C1", Sender: "bob",
			})
		})

		It("returns 400 when query is missing", func() {
			resp := doJSON(server, http.MethodGet, "/v1/search", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(decode[ErrorResponse](resp).Error).To(Equal("query parameter is required"))
		})

		It("returns 400 for a non-positive limit", func() {
			resp := doJSON(server, http.MethodGet, "/v1/search?query=kafka&limit=0", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for a limit above the maximum", func() {
			resp := doJSON(server, http.MethodGet, "/v1/search?query=kafka&limit=101", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(decode[ErrorResponse](resp).Error).To(Equal("limit must be an integer between 1 and 100"))
		})

		It("accepts a zero threshold", func() {
			resp := doJSON(server, http.MethodGet, "/v1/search?query=kafka+cluster&threshold=0", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[SearchResponse](resp).Count).To(Equal(1))
		})

		It("returns 400 for an out of range threshold", func() {
			resp := doJSON(server, http.MethodGet, "/v1/search?query=kafka&threshold=2", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns matching messages", func() {
			q := url.Values{"query": {"kafka cluster"}, "project_id": {"P1"}}
			resp := doJSON(server, http.MethodGet, "/v1/search?"+q.Encode(), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[SearchResponse](resp)
			Expect(out.Query).To(Equal("kafka cluster"))
			Expect(out.Count).To(Equal(1))
			Expect(out.Hits[0].Kind).To(Equal(memory.HitMessage))
			Expect(out.Hits[0].Message.Sender).To(Equal("alice"))
		})

		It("filters by user", func() {
			q := url.Values{"query": {"kafka cluster"}, "user_id": {"bob"}}
			resp := doJSON(server, http.MethodGet, "/v1/search?"+q.Encode(), nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[SearchResponse](resp).Hits).To(BeEmpty())
		})
	})

	Describe("POST /v1/cleanup", func() {
		BeforeEach(func() {
			doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content: "short lived", ProjectID: "P1", ConversationID: "C1", Sender: "alice",
			})
		})

		It("keeps recent entities with the default retention", func() {
			resp := doJSON(server, http.MethodPost, "/v1/cleanup", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[memory.CleanupResult](resp).MessagesRemoved).To(Equal(0))
		})

		It("removes everything with zero days", func() {
			days := 0
			resp := doJSON(server, http.MethodPost, "/v1/cleanup", CleanupRequest{OlderThanDays: &days})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[memory.CleanupResult](resp).MessagesRemoved).To(Equal(1))
			Expect(engine.Stats().TotalMessages).To(Equal(0))
		})

		It("rejects negative days", func() {
			days := -1
			resp := doJSON(server, http.MethodPost, "/v1/cleanup", CleanupRequest{OlderThanDays: &days})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /v1/stats", func() {
		It("reports counts", func() {
			doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content: "one", ProjectID: "P1", ConversationID: "C1", Sender: "alice",
			})
			doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content: "two", ProjectID: "P2", ConversationID: "C2", Sender: "bob",
			})

			resp := doJSON(server, http.MethodGet, "/v1/stats", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			st := decode[memory.Stats](resp)
			Expect(st.TotalMessages).To(Equal(2))
			Expect(st.TotalProjects).To(Equal(2))
			Expect(st.EmbeddingsEnabled).To(BeTrue())
		})
	})

	Describe("/v1/snapshot", func() {
		It("round-trips state into another server", func() {
			doJSON(server, http.MethodPost, "/v1/messages", memory.MessageInput{
				Content: "remember me", ProjectID: "P1", ConversationID: "C1", Sender: "alice",
			})

			resp := doJSON(server, http.MethodGet, "/v1/snapshot", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			snap := decode[memory.Snapshot](resp)
			Expect(snap.Version).To(Equal(memory.SnapshotVersion))
			Expect(snap.Messages).To(HaveLen(1))

			other, otherEngine := newTestServer()
			defer otherEngine.Close()

			resp = doJSON(other, http.MethodPost, "/v1/snapshot", snap)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[memory.Stats](resp).TotalMessages).To(Equal(1))
			Expect(otherEngine.Buffer("P1", "C1")).To(HaveLen(1))
		})

		It("rejects unsupported versions", func() {
			resp := doJSON(server, http.MethodPost, "/v1/snapshot", memory.Snapshot{Version: 99})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	It("mounts the MCP endpoint", func() {
		req, err := http.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString("not json"))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).NotTo(Equal(fiber.StatusNotFound))
	})
})

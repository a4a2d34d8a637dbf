package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/kafka"
	"github.com/papercomputeco/recall/pkg/logger"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer    *fakeWriter
		publisher *kafka.Publisher
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		var err error
		publisher, err = kafka.NewPublisher(kafka.Config{Writer: writer}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires brokers when no writer is injected", func() {
		_, err := kafka.NewPublisher(kafka.Config{}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("builds a kafka-go writer from brokers", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("rejects nil events", func() {
		Expect(publisher.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(writer.messages).To(BeEmpty())
	})

	It("writes JSON keyed by conversation with type headers", func() {
		event := eventstream.NewEvent(eventstream.EventTypeMessageAdded, "p1", "c1")
		event.Message = &eventstream.MessagePayload{MessageID: "m1", Sender: "user", TokenEstimate: 4}

		Expect(publisher.Publish(context.Background(), event)).To(Succeed())
		Expect(writer.messages).To(HaveLen(1))

		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal("c1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte("recall.message.added")}))

		var decoded eventstream.Event
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Message.MessageID).To(Equal("m1"))
	})

	It("wraps writer failures", func() {
		writer.err = errors.New("broker down")
		err := publisher.Publish(context.Background(), eventstream.NewEvent(eventstream.EventTypeCleanupCompleted, "", ""))
		Expect(err).To(MatchError(ContainSubstring("broker down")))
		Expect(err).To(MatchError(ContainSubstring("recall.memory")))
	})

	It("closes the writer", func() {
		Expect(publisher.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})

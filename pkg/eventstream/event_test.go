package eventstream_test

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hypedigitaly/streamer/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals AnswerCompletedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewAnswerCompletedEvent(now)
		event.Source = eventstream.EventSource{Project: "teplice", Model: "claude-3-5-sonnet-20241022"}
		event.RequestID = "req-1"
		event.UserID = "user-1"
		event.VariableName = "LLM_Main_Response"
		event.AnswerChars = 42
		event.VariableStoreStatus = 200

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		for _, key := range []string{
			"schema_version", "event_type", "event_id", "emitted_at", "source",
			"request_id", "user_id", "variable_name", "answer_chars", "partial",
			"variable_store_status",
		} {
			Expect(got).To(HaveKey(key))
		}
		Expect(got).NotTo(HaveKey("error"))
	})

	It("fills in the envelope", func() {
		now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
		event := eventstream.NewAnswerCompletedEvent(now)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal("streamer.answer.completed"))
		Expect(event.EmittedAt.Location()).To(Equal(time.UTC))
		Expect(event.EmittedAt.Equal(now)).To(BeTrue())

		_, err := uuid.Parse(event.EventID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("provides ErrNilAnswerEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilAnswerEvent).To(MatchError("nil answer event"))
	})
})

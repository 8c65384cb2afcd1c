// Package events publishes roster changes to Kafka.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"example.com/extracurricular/internal/domain"
)

// ParticipantChanged is the message emitted when a participant signs up or unregisters.
type ParticipantChanged struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	Activity         string    `json:"activity"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	MaxParticipants  int       `json:"max_participants"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func newParticipantChanged(change domain.ParticipantChange) ParticipantChanged {
	return ParticipantChanged{
		EventID:          uuid.NewString(),
		EventType:        string(change.Kind),
		Activity:         change.Activity,
		Email:            change.Email,
		ParticipantCount: change.ParticipantCount,
		MaxParticipants:  change.MaxParticipants,
		OccurredAt:       change.OccurredAt,
	}
}

// encodeMessage keys the record by activity so one activity's changes stay ordered on a partition.
func encodeMessage(change domain.ParticipantChange) (kafka.Message, error) {
	event := newParticipantChanged(change)
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.Activity),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}, nil
}

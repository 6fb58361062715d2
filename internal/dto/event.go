package dto

import (
	"time"

	"github.com/aquacrest/hatchflow/internal/entity"
)

// EventResponse represents one audit log record.
type EventResponse struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user_id"`
	Kind       string         `json:"kind"`
	OccurredAt time.Time      `json:"occurred_at"`
	OrderID    *int64         `json:"order_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewEventResponse maps an audit record.
func NewEventResponse(e *entity.CustomerEvent) EventResponse {
	return EventResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		Kind:       string(e.Kind),
		OccurredAt: e.OccurredAt,
		OrderID:    e.OrderID,
		Metadata:   e.Metadata,
	}
}

// NewEventResponses maps a slice of audit records.
func NewEventResponses(events []entity.CustomerEvent) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, NewEventResponse(&events[i]))
	}
	return out
}

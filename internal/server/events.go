package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/PluxCo/testing-platform-old/internal/schedule"
	"github.com/PluxCo/testing-platform-old/pkg/http/ws"
)

// HubEvents adapts the WebSocket hub to the scheduler's event sink.
type HubEvents struct {
	hub *ws.Hub
}

var _ schedule.EventSink = (*HubEvents)(nil)

func NewHubEvents(hub *ws.Hub) *HubEvents {
	return &HubEvents{hub: hub}
}

func (e *HubEvents) QuestionDelivered(personID, questionID uuid.UUID, token string) {
	e.hub.BroadcastAll(ws.NewMessage(ws.TypeQuestionDelivered, ws.QuestionDeliveredPayload{
		PersonID:   personID.String(),
		QuestionID: questionID.String(),
		Token:      token,
	}))
}

func (e *HubEvents) AnswerRegistered(personID, questionID uuid.UUID, points float64) {
	e.hub.BroadcastAll(ws.NewMessage(ws.TypeAnswerRegistered, ws.AnswerRegisteredPayload{
		PersonID:   personID.String(),
		QuestionID: questionID.String(),
		Points:     points,
	}))
}

func (e *HubEvents) CycleCompleted(delivered int, at time.Time) {
	e.hub.BroadcastAll(ws.NewMessage(ws.TypeCycleCompleted, ws.CycleCompletedPayload{
		Delivered: delivered,
		At:        at.UTC().Format(time.RFC3339),
	}))
}

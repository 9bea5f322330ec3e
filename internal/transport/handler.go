package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/PluxCo/testing-platform-old/internal/metrics"
	"github.com/PluxCo/testing-platform-old/internal/model"
	"github.com/PluxCo/testing-platform-old/internal/schedule"
	httperrors "github.com/PluxCo/testing-platform-old/pkg/http/errors"
)

// Continuation signals whether the remote session wants more questions.
const (
	ContinuationOpen  = "open"
	ContinuationClose = "close"
)

const (
	feedbackCorrect  = "Correct!"
	feedbackWrong    = "Wrong answer ;("
	feedbackRecorded = "No idea whether that is right, but it is all written down!"
	feedbackFarewell = "That is all for now, thanks!"
)

// AnswerHandler consumes inbound webhook callbacks from the messaging
// service: it resolves the correlation token, registers the answer, sends
// feedback and, when the remote session stays open, immediately dispatches
// the person's next question.
type AnswerHandler struct {
	table     *schedule.CorrelationTable
	questions schedule.QuestionStore
	transport schedule.Transport
	metrics   *metrics.Collector
	events    schedule.EventSink
	logger    zerolog.Logger
}

func NewAnswerHandler(table *schedule.CorrelationTable, questions schedule.QuestionStore,
	transport schedule.Transport, collector *metrics.Collector, events schedule.EventSink,
	logger zerolog.Logger) *AnswerHandler {

	return &AnswerHandler{
		table:     table,
		questions: questions,
		transport: transport,
		metrics:   collector,
		events:    events,
		logger:    logger.With().Str("component", "answer_handler").Logger(),
	}
}

type webhookRequest struct {
	CorrelationToken string `json:"correlation_token"`
	Answer           string `json:"answer"`
	Continuation     string `json:"continuation"`
}

type webhookResponse struct {
	ClearButtons bool `json:"clear_buttons"`
}

// HandleWebhook is the POST /webhook endpoint.
func (h *AnswerHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed webhook payload")
		return
	}
	if req.CorrelationToken == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "correlation_token is required")
		return
	}

	err := h.Register(r.Context(), req.CorrelationToken, req.Answer, req.Continuation)
	switch {
	case errors.Is(err, model.ErrUnknownCorrelation):
		httperrors.RespondError(w, http.StatusNotFound, httperrors.ErrCodeUnknownCorrelation,
			"no in-flight question for this token")
		return
	case errors.Is(err, model.ErrConflict):
		httperrors.RespondError(w, http.StatusConflict, httperrors.ErrCodeConflict,
			"answer already registered")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("answer registration failed")
		httperrors.RespondInternalError(w, "answer registration failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(webhookResponse{ClearButtons: true})
}

// Register resolves the token, grades the answer and drives the remote
// session forward. Unknown tokens are surfaced distinctly, never treated
// as fresh records.
func (h *AnswerHandler) Register(ctx context.Context, token, rawAnswer, continuation string) error {
	corr, err := h.table.Take(token)
	if err != nil {
		h.metrics.RecordUnknownCorrelation()
		h.logger.Warn().Str("token", token).Msg("unknown correlation token")
		return err
	}

	rec, err := corr.Session.RegisterAnswer(ctx, corr.Record, rawAnswer)
	if err != nil {
		return err
	}
	h.metrics.RecordAnswerRegistered()
	if h.events != nil {
		h.events.AnswerRegistered(rec.PersonID, rec.QuestionID, rec.Points)
	}

	h.sendFeedback(ctx, rec)

	switch continuation {
	case ContinuationOpen:
		if err := h.dispatchNext(ctx, corr.Session); err != nil {
			h.logger.Warn().Err(err).Stringer("person_id", rec.PersonID).Msg("follow-up dispatch failed")
		}
	case ContinuationClose:
		h.send(ctx, schedule.Message{PersonID: rec.PersonID, Text: feedbackFarewell})
	}
	return nil
}

func (h *AnswerHandler) sendFeedback(ctx context.Context, rec *model.AnswerRecord) {
	question, err := h.questions.Question(ctx, rec.QuestionID)
	if err != nil {
		h.logger.Warn().Err(err).Stringer("question_id", rec.QuestionID).Msg("feedback question lookup failed")
		return
	}

	text := feedbackRecorded
	if question.Type == model.QuestionTest {
		if rec.Points > 0 {
			text = feedbackCorrect
		} else {
			text = feedbackWrong
		}
	}
	h.send(ctx, schedule.Message{PersonID: rec.PersonID, Text: text})
}

// dispatchNext regenerates the session queue and delivers one more
// question, wiring the new correlation token exactly like a dispatch cycle.
func (h *AnswerHandler) dispatchNext(ctx context.Context, session *schedule.Session) error {
	if err := session.GenerateQuestions(ctx); err != nil {
		return err
	}
	rec, err := session.NextQuestion(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	question, err := h.questions.Question(ctx, rec.QuestionID)
	if err != nil {
		return err
	}

	tokens, err := h.transport.Send(ctx, []schedule.Message{
		schedule.BuildMessage(rec.PersonID, question),
	})
	if err != nil {
		return fmt.Errorf("send follow-up question: %w", err)
	}
	if len(tokens) == 0 || tokens[0] == "" {
		h.metrics.RecordDeliveryFailure()
		return nil
	}

	h.table.Put(tokens[0], session, rec)
	if err := session.MarkTransferred(ctx, rec); err != nil {
		return err
	}
	h.metrics.RecordDelivered()
	if h.events != nil {
		h.events.QuestionDelivered(rec.PersonID, rec.QuestionID, tokens[0])
	}
	return nil
}

func (h *AnswerHandler) send(ctx context.Context, msg schedule.Message) {
	if _, err := h.transport.Send(ctx, []schedule.Message{msg}); err != nil {
		h.logger.Warn().Err(err).Stringer("person_id", msg.PersonID).Msg("notification send failed")
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PluxCo/testing-platform-old/internal/db/store"
	"github.com/PluxCo/testing-platform-old/internal/model"
	"github.com/PluxCo/testing-platform-old/internal/settings"
	httperrors "github.com/PluxCo/testing-platform-old/pkg/http/errors"
)

// Handlers serves the admin REST surface: question and person CRUD, answer
// inspection with the grading correction endpoint, and live scheduler
// settings.
type Handlers struct {
	questions *store.QuestionStore
	answers   *store.AnswerStore
	persons   *store.PersonStore
	settings  *settings.Provider
	logger    zerolog.Logger
}

func NewHandlers(questions *store.QuestionStore, answers *store.AnswerStore,
	persons *store.PersonStore, settingsProvider *settings.Provider, logger zerolog.Logger) *Handlers {

	return &Handlers{
		questions: questions,
		answers:   answers,
		persons:   persons,
		settings:  settingsProvider,
		logger:    logger.With().Str("component", "admin_api").Logger(),
	}
}

func (h *Handlers) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.questions.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list questions failed")
		httperrors.RespondInternalError(w, "could not list questions")
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

type createQuestionRequest struct {
	Text       string   `json:"text"`
	Subject    string   `json:"subject"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
	Level      int      `json:"level"`
	ArticleURL string   `json:"article_url"`
	Type       string   `json:"type"`
	Groups     []string `json:"groups"`
}

func (h *Handlers) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed question payload")
		return
	}
	if req.Text == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "text is required", "text")
		return
	}
	if req.Type == "" {
		req.Type = model.QuestionTest
	}
	if req.Type != model.QuestionTest && req.Type != model.QuestionOpen {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "type must be TEST or OPEN", "type")
		return
	}
	if req.Type == model.QuestionTest && req.Answer == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "TEST questions need an answer", "answer")
		return
	}

	groups := make([]uuid.UUID, 0, len(req.Groups))
	for _, raw := range req.Groups {
		id, err := uuid.Parse(raw)
		if err != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "invalid group id", "groups")
			return
		}
		groups = append(groups, id)
	}

	question := model.Question{
		ID:         uuid.New(),
		Text:       req.Text,
		Subject:    req.Subject,
		Options:    req.Options,
		Answer:     req.Answer,
		Level:      req.Level,
		ArticleURL: req.ArticleURL,
		Type:       req.Type,
		Groups:     groups,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.questions.Create(r.Context(), question); err != nil {
		h.logger.Error().Err(err).Msg("create question failed")
		httperrors.RespondInternalError(w, "could not create question")
		return
	}
	respondJSON(w, http.StatusCreated, question)
}

func (h *Handlers) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid question id")
		return
	}
	question, err := h.questions.Question(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "get question failed")
		return
	}
	respondJSON(w, http.StatusOK, question)
}

func (h *Handlers) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid question id")
		return
	}
	if err := h.questions.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, err, "delete question failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListAnswers(w http.ResponseWriter, r *http.Request) {
	var filter store.AnswerFilter
	if raw := r.URL.Query().Get("person_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid person_id filter")
			return
		}
		filter.PersonID = &id
	}
	if raw := r.URL.Query().Get("question_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid question_id filter")
			return
		}
		filter.QuestionID = &id
	}

	answers, err := h.answers.List(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("list answers failed")
		httperrors.RespondInternalError(w, "could not list answers")
		return
	}
	respondJSON(w, http.StatusOK, answers)
}

func (h *Handlers) GetAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid answer id")
		return
	}
	answer, err := h.answers.Answer(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "get answer failed")
		return
	}
	respondJSON(w, http.StatusOK, answer)
}

type correctAnswerRequest struct {
	Points float64 `json:"points"`
}

// CorrectAnswer is the out-of-band grading endpoint: points may be updated
// after registration (e.g. a human grading an OPEN answer), state never
// regresses.
func (h *Handlers) CorrectAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid answer id")
		return
	}
	var req correctAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed correction payload")
		return
	}
	if req.Points < 0 || req.Points > 1 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "points must be within [0, 1]", "points")
		return
	}
	if err := h.answers.UpdatePoints(r.Context(), id, req.Points); err != nil {
		h.respondStoreError(w, err, "correct answer failed")
		return
	}
	answer, err := h.answers.Answer(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "reload answer failed")
		return
	}
	respondJSON(w, http.StatusOK, answer)
}

// settingsDTO is the wire form of the scheduler settings: the period in
// seconds, times as "HH:MM" and weekdays as 0 (Sunday) through 6.
type settingsDTO struct {
	TimePeriodSeconds float64 `json:"time_period"`
	FromTime          string  `json:"from_time"`
	ToTime            string  `json:"to_time"`
	WeekDays          []int   `json:"week_days"`
}

func toDTO(s settings.Settings) settingsDTO {
	days := make([]int, 0, len(s.WeekDays))
	for _, d := range s.WeekDays {
		days = append(days, int(d))
	}
	return settingsDTO{
		TimePeriodSeconds: s.TimePeriod.Seconds(),
		FromTime:          s.FromTime.String(),
		ToTime:            s.ToTime.String(),
		WeekDays:          days,
	}
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Current()
	if err != nil {
		httperrors.RespondError(w, http.StatusServiceUnavailable,
			httperrors.ErrCodeSettingsUnavailable, "settings not initialized")
		return
	}
	respondJSON(w, http.StatusOK, toDTO(current))
}

// UpdateSettings applies a partial update: absent fields keep their
// current value. The dispatcher observes the change on its next tick.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Current()
	if err != nil {
		httperrors.RespondError(w, http.StatusServiceUnavailable,
			httperrors.ErrCodeSettingsUnavailable, "settings not initialized")
		return
	}

	dto := toDTO(current)
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed settings payload")
		return
	}

	updated, err := fromDTO(dto)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, err.Error())
		return
	}
	if err := h.settings.Update(r.Context(), updated); err != nil {
		h.logger.Error().Err(err).Msg("settings update failed")
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toDTO(updated))
}

func fromDTO(dto settingsDTO) (settings.Settings, error) {
	if dto.TimePeriodSeconds <= 0 {
		return settings.Settings{}, errors.New("time_period must be positive")
	}
	from, err := settings.ParseClockTime(dto.FromTime)
	if err != nil {
		return settings.Settings{}, err
	}
	to, err := settings.ParseClockTime(dto.ToTime)
	if err != nil {
		return settings.Settings{}, err
	}
	days := make([]time.Weekday, 0, len(dto.WeekDays))
	for _, d := range dto.WeekDays {
		if d < 0 || d > 6 {
			return settings.Settings{}, errors.New("week_days values must be 0 through 6")
		}
		days = append(days, time.Weekday(d))
	}
	return settings.Settings{
		TimePeriod: time.Duration(dto.TimePeriodSeconds * float64(time.Second)),
		FromTime:   from,
		ToTime:     to,
		WeekDays:   days,
	}, nil
}

func (h *Handlers) ListPersons(w http.ResponseWriter, r *http.Request) {
	people, err := h.persons.People(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list persons failed")
		httperrors.RespondInternalError(w, "could not list persons")
		return
	}
	respondJSON(w, http.StatusOK, people)
}

func (h *Handlers) SavePerson(w http.ResponseWriter, r *http.Request) {
	var person model.Person
	if err := json.NewDecoder(r.Body).Decode(&person); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed person payload")
		return
	}
	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}
	if err := h.persons.Save(r.Context(), &person); err != nil {
		h.logger.Error().Err(err).Msg("save person failed")
		httperrors.RespondInternalError(w, "could not save person")
		return
	}
	respondJSON(w, http.StatusOK, person)
}

func (h *Handlers) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid person id")
		return
	}
	person, err := h.persons.Person(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "get person failed")
		return
	}
	respondJSON(w, http.StatusOK, person)
}

func (h *Handlers) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid person id")
		return
	}
	if err := h.persons.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, err, "could not delete person")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) respondStoreError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "entity not found")
	case errors.Is(err, model.ErrConflict):
		httperrors.RespondConflict(w, httperrors.ErrCodeConflict, "conflicting update")
	default:
		h.logger.Error().Err(err).Msg(msg)
		httperrors.RespondInternalError(w, msg)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

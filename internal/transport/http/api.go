package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logger"
	"live-quiz-service/internal/metrics"
)

// CallerHeader carries the authenticated user id, set by the gateway in front of the service.
const CallerHeader = "X-User-ID"

// API exposes the live session commands over JSON/HTTP.
type API struct {
	service  *app.LiveService
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewAPI(service *app.LiveService, log logrus.FieldLogger) *API {
	if log == nil {
		log = logger.Discard()
	}
	return &API{service: service, validate: validator.New(), log: log}
}

// Register mounts the REST routes, each wrapped with request metrics.
func (a *API) Register(mux *http.ServeMux, m *metrics.Metrics) {
	route := func(pattern string, h http.HandlerFunc) {
		if m != nil {
			mux.Handle(pattern, m.Middleware(pattern, h))
			return
		}
		mux.Handle(pattern, h)
	}
	route("POST /sessions", a.createSession)
	route("GET /sessions/{id}", a.state)
	route("GET /sessions/{id}/ranking", a.ranking)
	route("GET /sessions/{id}/results", a.results)
	route("GET /sessions/{id}/participants/{participantId}/results", a.participantResults)
	route("POST /sessions/{id}/start", a.hostCommand(a.service.Start))
	route("POST /sessions/{id}/advance", a.hostCommand(a.service.Advance))
	route("POST /sessions/{id}/show-answers", a.hostCommand(a.service.ShowAnswers))
	route("POST /sessions/{id}/end", a.hostCommand(a.service.End))
	route("POST /sessions/{id}/answers", a.answer)
	route("POST /join", a.join)
}

type createSessionRequest struct {
	QuizID string `json:"quizId" validate:"required"`
}

type joinRequest struct {
	AccessCode string `json:"accessCode" validate:"required"`
	Nickname   string `json:"nickname" validate:"required"`
}

type joinResponse struct {
	ParticipantID string `json:"participantId"`
	SessionID     string `json:"sessionId"`
	Nickname      string `json:"nickname"`
}

type answerRequest struct {
	ParticipantID string   `json:"participantId" validate:"required"`
	QuestionID    string   `json:"questionId" validate:"required"`
	OptionIDs     []string `json:"optionIds" validate:"required"`
	ResponseTime  *float64 `json:"responseTime" validate:"required"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	session, err := a.service.CreateSession(r.Context(), callerFrom(r), req.QuizID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) state(w http.ResponseWriter, r *http.Request) {
	state, err := a.service.State(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) ranking(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: "invalid_request", Message: "limit must be an integer"}})
			return
		}
		limit = n
	}
	ranking, err := a.service.Ranking(r.Context(), r.PathValue("id"), limit, r.URL.Query().Get("participantId"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

func (a *API) results(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) participantResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.ParticipantResults(r.Context(), r.PathValue("id"), r.PathValue("participantId"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type hostFunc func(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error)

func (a *API) hostCommand(cmd hostFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, err := cmd(r.Context(), callerFrom(r), r.PathValue("id"))
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ev)
	}
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !a.decode(w, r, &req) {
		return
	}
	p, err := a.service.Join(r.Context(), req.AccessCode, req.Nickname)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinResponse{ParticipantID: p.ID, SessionID: p.SessionID, Nickname: p.Nickname})
}

func (a *API) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.service.Answer(r.Context(), r.PathValue("id"), req.ParticipantID, req.QuestionID, req.OptionIDs, *req.ResponseTime)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: "invalid_request", Message: "malformed JSON body"}})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = verrs[0].Field() + " is " + verrs[0].Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: "invalid_request", Message: msg}})
		return false
	}
	return true
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		a.log.WithError(err).WithField("kind", kind).Error("request failed")
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: kind, Message: err.Error()}})
}

func statusFor(kind string) int {
	switch kind {
	case "session_not_found", "participant_not_found", "quiz_not_found", "option_not_found":
		return http.StatusNotFound
	case "not_owner":
		return http.StatusForbidden
	case "invalid_selection_count", "invalid_response_time", "invalid_nickname", "invalid_quiz":
		return http.StatusUnprocessableEntity
	case "storage_error":
		return http.StatusServiceUnavailable
	case "internal":
		return http.StatusInternalServerError
	default:
		// state conflicts: already answered, not active, nickname taken, ...
		return http.StatusConflict
	}
}

func callerFrom(r *http.Request) domain.Caller {
	return domain.Caller{UserID: r.Header.Get(CallerHeader)}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

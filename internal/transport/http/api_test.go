package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	mux := http.NewServeMux()
	NewAPI(newTestService(), nil).Register(mux, metrics.New(prometheus.NewRegistry()))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

func (c *apiClient) do(method, path, user string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(c.t, err)
	if user != "" {
		req.Header.Set(CallerHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPISessionFlow(t *testing.T) {
	c := newAPIClient(t)

	var session domain.Session
	require.Equal(t, http.StatusCreated, c.do("POST", "/sessions", "host-1", map[string]string{"quizId": "quiz-1"}, &session))
	require.Equal(t, domain.StatusPending, session.Status)
	base := "/sessions/" + session.ID

	var ev domain.Event
	require.Equal(t, http.StatusOK, c.do("POST", base+"/start", "host-1", nil, &ev))
	require.Equal(t, domain.EventSessionStarted, ev.Type)

	var joined joinResponse
	require.Equal(t, http.StatusCreated, c.do("POST", "/join", "", map[string]string{"accessCode": "ABC123", "nickname": "alice"}, &joined))
	require.Equal(t, session.ID, joined.SessionID)

	answer := map[string]any{"participantId": joined.ParticipantID, "questionId": "q1", "optionIds": []string{"o2"}, "responseTime": 15}
	var result domain.AnswerResult
	require.Equal(t, http.StatusOK, c.do("POST", base+"/answers", "", answer, &result))
	assert.Equal(t, 50, result.TotalScore)

	var errResp errorBody
	require.Equal(t, http.StatusConflict, c.do("POST", base+"/answers", "", answer, &errResp))
	assert.Equal(t, "already_answered", errResp.Error.Code)

	var ranking domain.Ranking
	require.Equal(t, http.StatusOK, c.do("GET", base+"/ranking?limit=5&participantId="+joined.ParticipantID, "", nil, &ranking))
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, 1, ranking.Position)

	require.Equal(t, http.StatusOK, c.do("POST", base+"/show-answers", "host-1", nil, &ev))
	require.NotNil(t, ev.Reveal)
	var revealed domain.SessionState
	require.Equal(t, http.StatusOK, c.do("GET", base, "", nil, &revealed))
	require.NotNil(t, revealed.Reveal)
	assert.True(t, revealed.Reveal.Options[1].Correct)
	assert.Equal(t, 1, revealed.Reveal.Options[1].AnswerCount)
	require.Equal(t, http.StatusOK, c.do("POST", base+"/end", "host-1", nil, &ev))
	assert.Equal(t, "ended_by_host", ev.Reason)

	var results domain.Results
	require.Equal(t, http.StatusOK, c.do("GET", base+"/results", "", nil, &results))
	assert.Equal(t, domain.StatusCompleted, results.Status)
	assert.Equal(t, 1, results.ParticipantsCount)

	var mine domain.ParticipantResults
	require.Equal(t, http.StatusOK, c.do("GET", base+"/participants/"+joined.ParticipantID+"/results", "", nil, &mine))
	assert.Equal(t, 1, mine.Position)
	require.Len(t, mine.Questions, 1)
	assert.Equal(t, []string{"o2"}, mine.Questions[0].OptionIDs)
	assert.Equal(t, []string{"o2"}, mine.Questions[0].CorrectOptionIDs)
	assert.Equal(t, 50, mine.Questions[0].Score)

	require.Equal(t, http.StatusNotFound, c.do("GET", base+"/participants/ghost/results", "", nil, &errResp))
	assert.Equal(t, "participant_not_found", errResp.Error.Code)

	var state domain.SessionState
	require.Equal(t, http.StatusOK, c.do("GET", base, "", nil, &state))
	assert.Equal(t, domain.StatusCompleted, state.Session.Status)
}

func TestAPIErrors(t *testing.T) {
	c := newAPIClient(t)

	var errResp errorBody
	require.Equal(t, http.StatusForbidden, c.do("POST", "/sessions", "intruder", map[string]string{"quizId": "quiz-1"}, &errResp))
	assert.Equal(t, "not_owner", errResp.Error.Code)

	require.Equal(t, http.StatusBadRequest, c.do("POST", "/sessions", "host-1", map[string]string{}, &errResp))
	assert.Equal(t, "invalid_request", errResp.Error.Code)

	require.Equal(t, http.StatusNotFound, c.do("GET", "/sessions/missing", "", nil, &errResp))
	assert.Equal(t, "session_not_found", errResp.Error.Code)

	require.Equal(t, http.StatusConflict, c.do("POST", "/join", "", map[string]string{"accessCode": "ABC123", "nickname": "alice"}, &errResp))
	assert.Equal(t, "session_not_active", errResp.Error.Code)

	var session domain.Session
	require.Equal(t, http.StatusCreated, c.do("POST", "/sessions", "host-1", map[string]string{"quizId": "quiz-1"}, &session))
	require.Equal(t, http.StatusForbidden, c.do("POST", "/sessions/"+session.ID+"/start", "", nil, &errResp))
	require.Equal(t, http.StatusConflict, c.do("POST", "/sessions/"+session.ID+"/end", "host-1", nil, &errResp))
	assert.Equal(t, "not_active", errResp.Error.Code)

	require.Equal(t, http.StatusBadRequest, c.do("GET", "/sessions/"+session.ID+"/ranking?limit=x", "", nil, &errResp))

	require.Equal(t, http.StatusOK, c.do("POST", "/sessions/"+session.ID+"/start", "host-1", nil, nil))
	require.Equal(t, http.StatusUnprocessableEntity, c.do("POST", "/join", "", map[string]string{"accessCode": "ABC123", "nickname": "al"}, &errResp))
	assert.Equal(t, "invalid_nickname", errResp.Error.Code)

	var joined joinResponse
	require.Equal(t, http.StatusCreated, c.do("POST", "/join", "", map[string]string{"accessCode": "ABC123", "nickname": "bob"}, &joined))
	answer := map[string]any{"participantId": joined.ParticipantID, "questionId": "q1", "optionIds": []string{"o1", "o2"}, "responseTime": 3}
	require.Equal(t, http.StatusUnprocessableEntity, c.do("POST", "/sessions/"+session.ID+"/answers", "", answer, &errResp))
	assert.Equal(t, "invalid_selection_count", errResp.Error.Code)

	noTime := map[string]any{"participantId": joined.ParticipantID, "questionId": "q1", "optionIds": []string{"o2"}}
	require.Equal(t, http.StatusBadRequest, c.do("POST", "/sessions/"+session.ID+"/answers", "", noTime, &errResp))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.KindOf(domain.NewStorageError("op", assert.AnError))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.KindOf(assert.AnError)))
	assert.Equal(t, http.StatusConflict, statusFor(domain.KindOf(domain.ErrQuizAlreadyLive)))

	for err, want := range map[error]int{
		domain.ErrSessionNotFound:     http.StatusNotFound,
		domain.ErrParticipantNotFound: http.StatusNotFound,
		domain.ErrQuizNotFound:        http.StatusNotFound,
		domain.ErrOptionNotFound:      http.StatusNotFound,
		domain.ErrNotOwner:            http.StatusForbidden,
		domain.ErrAlreadyAnswered:     http.StatusConflict,
		domain.ErrNotActive:           http.StatusConflict,
	} {
		assert.Equal(t, want, statusFor(domain.KindOf(err)), err.Error())
	}
}

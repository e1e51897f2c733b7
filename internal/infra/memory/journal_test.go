package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

var _ app.JournalReader = (*Journal)(nil)

func TestJournalEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	require.NoError(t, j.SaveSession(ctx, domain.Session{ID: "s1", Status: domain.StatusActive}))
	require.NoError(t, j.AddParticipant(ctx, domain.Participant{ID: "p1", SessionID: "s1", Nickname: "alice"}))
	require.ErrorIs(t, j.AddParticipant(ctx, domain.Participant{ID: "p2", SessionID: "s1", Nickname: "alice"}), domain.ErrNicknameTaken)
	require.NoError(t, j.AddParticipant(ctx, domain.Participant{ID: "p3", SessionID: "s2", Nickname: "alice"}))

	require.NoError(t, j.RecordAnswer(ctx, domain.ParticipantAnswer{ParticipantID: "p1", SessionID: "s1", QuestionID: "q1", Score: 50}))
	require.ErrorIs(t, j.RecordAnswer(ctx, domain.ParticipantAnswer{ParticipantID: "p1", SessionID: "s1", QuestionID: "q1", Score: 90}), domain.ErrAlreadyAnswered)
	require.NoError(t, j.RecordAnswer(ctx, domain.ParticipantAnswer{ParticipantID: "p1", SessionID: "s1", QuestionID: "q2", Score: 20}))
	require.ErrorIs(t, j.RecordAnswer(ctx, domain.ParticipantAnswer{ParticipantID: "ghost", SessionID: "s1", QuestionID: "q1"}), domain.ErrParticipantNotFound)

	parts, err := j.Participants(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, 70, parts[0].TotalScore)

	answers, err := j.Answers(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, answers, 2)
	require.Equal(t, "q1", answers[0].QuestionID)
	require.Equal(t, 50, answers[0].Score)

	s, err := j.Session(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, s.Status)
	_, err = j.Session(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestJournalParticipantsKeepJoinOrder(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()
	for _, id := range []string{"p-b", "p-c", "p-a"} {
		require.NoError(t, j.AddParticipant(ctx, domain.Participant{ID: id, SessionID: "s1", Nickname: "nick-" + id}))
	}

	parts, err := j.Participants(ctx, "s1")
	require.NoError(t, err)
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"p-b", "p-c", "p-a"}, ids)

	empty, err := j.Participants(ctx, "s2")
	require.NoError(t, err)
	require.Empty(t, empty)
}

package app

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

// Join adds a participant to the active session of the quiz identified by accessCode.
func (s *LiveService) Join(ctx context.Context, accessCode, nickname string) (domain.Participant, error) {
	started := time.Now()
	p, err := s.joinByCode(ctx, accessCode, nickname)
	s.metrics.ObserveCommand("join", domain.KindOf(err), started)
	return p, err
}

func (s *LiveService) joinByCode(ctx context.Context, accessCode, nickname string) (domain.Participant, error) {
	quiz, err := s.quizzes.GetQuizByAccessCode(ctx, accessCode)
	if err != nil {
		return domain.Participant{}, err
	}
	session := s.activeSession(quiz.ID)
	if session == nil {
		return domain.Participant{}, domain.ErrSessionNotActive
	}
	return s.join(ctx, session, nickname)
}

// JoinSession adds a participant to a session addressed by id.
func (s *LiveService) JoinSession(ctx context.Context, sessionID, nickname string) (domain.Participant, error) {
	started := time.Now()
	p, err := s.joinSession(ctx, sessionID, nickname)
	s.metrics.ObserveCommand("join", domain.KindOf(err), started)
	return p, err
}

func (s *LiveService) joinSession(ctx context.Context, sessionID, nickname string) (domain.Participant, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Participant{}, err
	}
	return s.join(ctx, session, nickname)
}

func (s *LiveService) join(ctx context.Context, session *Session, nickname string) (domain.Participant, error) {
	if err := domain.ValidateNickname(nickname); err != nil {
		return domain.Participant{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state.Status != domain.StatusActive {
		return domain.Participant{}, domain.ErrSessionNotActive
	}
	if _, taken := session.nicknames[nickname]; taken {
		return domain.Participant{}, domain.ErrNicknameTaken
	}

	now := s.now()
	p := domain.Participant{
		ID:        s.newID(),
		SessionID: session.id,
		Nickname:  nickname,
		JoinedAt:  now,
	}
	if err := s.journal.AddParticipant(ctx, p); err != nil {
		return domain.Participant{}, storageErr("add participant", err)
	}

	session.participants[p.ID] = &participantState{
		participant:    p,
		order:          len(session.participants),
		questionScores: make(map[string]int),
	}
	session.nicknames[nickname] = p.ID
	ev := session.eventLocked(domain.EventParticipantJoined, now)
	ev.Participant = &domain.ParticipantPayload{ID: p.ID, Nickname: p.Nickname}
	session.refreshLocked()
	s.publishLocked(ctx, session, ev)

	s.log.WithFields(logrus.Fields{
		"session_id":     session.id,
		"participant_id": p.ID,
		"nickname":       nickname,
	}).Info("participant joined")
	return p, nil
}

// Answer scores a participant's submission for the current question. Each (participant, question)
// pair is accepted at most once; repeats fail with domain.ErrAlreadyAnswered and change nothing.
func (s *LiveService) Answer(ctx context.Context, sessionID, participantID, questionID string, optionIDs []string, responseTime float64) (domain.AnswerResult, error) {
	started := time.Now()
	res, err := s.answer(ctx, sessionID, participantID, questionID, optionIDs, responseTime)
	kind := domain.KindOf(err)
	s.metrics.ObserveCommand("answer", kind, started)
	if err == nil {
		kind = "accepted"
	}
	s.metrics.AnswersTotal.WithLabelValues(kind).Inc()
	return res, err
}

func (s *LiveService) answer(ctx context.Context, sessionID, participantID, questionID string, optionIDs []string, responseTime float64) (domain.AnswerResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state.Status != domain.StatusActive {
		return domain.AnswerResult{}, domain.ErrSessionNotActive
	}
	participant, ok := session.participants[participantID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}
	q, ok := session.currentLocked()
	if !ok || q.ID != questionID {
		return domain.AnswerResult{}, domain.ErrQuestionNotCurrent
	}
	key := answerKey{participantID: participantID, questionID: questionID}
	if _, done := session.answered[key]; done {
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	scored, err := Score(q, optionIDs, responseTime)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	now := s.now()
	record := domain.ParticipantAnswer{
		ParticipantID: participantID,
		SessionID:     session.id,
		QuestionID:    questionID,
		OptionIDs:     scored.OptionIDs,
		ResponseTime:  responseTime,
		Score:         scored.Score,
		Correct:       scored.Correct,
		AnsweredAt:    now,
	}
	if err := s.journal.RecordAnswer(ctx, record); err != nil {
		return domain.AnswerResult{}, storageErr("record answer", err)
	}

	session.answered[key] = struct{}{}
	participant.questionScores[questionID] = scored.Score
	participant.responseTotal += responseTime
	if scored.Correct {
		participant.correct++
	}
	total := 0
	for _, v := range participant.questionScores {
		total += v
	}
	participant.participant.TotalScore = total

	tallies, ok := session.tallies[questionID]
	if !ok {
		tallies = make(map[string]*optionTally)
		session.tallies[questionID] = tallies
	}
	for _, id := range scored.OptionIDs {
		t, ok := tallies[id]
		if !ok {
			t = &optionTally{}
			tallies[id] = t
		}
		t.count++
		t.responseTotal += responseTime
	}

	ev := session.eventLocked(domain.EventParticipantAnswered, now)
	ev.Answer = &domain.AnswerPayload{
		ParticipantID: participantID,
		Nickname:      participant.participant.Nickname,
		QuestionID:    questionID,
		ResponseTime:  responseTime,
		ScoreDelta:    scored.Score,
		TotalScore:    total,
	}
	session.refreshLocked()
	s.publishLocked(ctx, session, ev)

	return domain.AnswerResult{
		QuestionID: questionID,
		Correct:    scored.Correct,
		Awarded:    scored.Score,
		TotalScore: total,
	}, nil
}

// Ranking orders participants by total score, then by mean response time. limit <= 0 returns
// everyone. Position is the full-ranking place of participantID, 0 when unknown.
func (s *LiveService) Ranking(ctx context.Context, sessionID string, limit int, participantID string) (domain.Ranking, error) {
	rec, err := s.record(ctx, sessionID)
	if err != nil {
		return domain.Ranking{}, err
	}

	entries := rankParticipants(rec.participants)
	ranking := domain.Ranking{SessionID: sessionID, Total: len(entries)}
	for _, e := range entries {
		if participantID != "" && e.ParticipantID == participantID {
			ranking.Position = e.Position
			break
		}
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	ranking.Entries = entries
	return ranking, nil
}

// rankParticipants sorts by score desc, mean response asc, join order. Participants who never
// answered go after those who did at equal score, unlike a plain ORDER BY average_time where a
// NULL average sorts first.
func rankParticipants(parts []participantView) []domain.RankingEntry {
	sorted := make([]participantView, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.participant.TotalScore != b.participant.TotalScore {
			return a.participant.TotalScore > b.participant.TotalScore
		}
		if am, bm := meanResponse(a), meanResponse(b); am != bm {
			return am < bm
		}
		return a.order < b.order
	})

	entries := make([]domain.RankingEntry, 0, len(sorted))
	for i, p := range sorted {
		avg := 0.0
		if p.answers > 0 {
			avg = p.responseTotal / float64(p.answers)
		}
		entries = append(entries, domain.RankingEntry{
			Position:            i + 1,
			ParticipantID:       p.participant.ID,
			Nickname:            p.participant.Nickname,
			TotalScore:          p.participant.TotalScore,
			AnswersCount:        p.answers,
			AverageResponseTime: avg,
		})
	}
	return entries
}

func meanResponse(p participantView) float64 {
	if p.answers == 0 {
		return math.Inf(1)
	}
	return p.responseTotal / float64(p.answers)
}

// Results aggregates the session for the results screen.
func (s *LiveService) Results(ctx context.Context, sessionID string) (domain.Results, error) {
	rec, err := s.record(ctx, sessionID)
	if err != nil {
		return domain.Results{}, err
	}

	res := domain.Results{
		SessionID:         sessionID,
		Status:            rec.state.Status,
		ParticipantsCount: len(rec.participants),
		QuestionsCount:    len(rec.questions),
	}
	if len(rec.participants) == 0 {
		return res, nil
	}

	scoreSum, answers, correct := 0, 0, 0
	responseSum := 0.0
	for _, p := range rec.participants {
		scoreSum += p.participant.TotalScore
		answers += p.answers
		correct += p.correct
		responseSum += p.responseTotal
	}
	res.AverageScore = float64(scoreSum) / float64(len(rec.participants))
	if answers > 0 {
		res.AverageResponseTime = responseSum / float64(answers)
		res.CorrectPercentage = float64(correct) / float64(answers) * 100
	}
	return res, nil
}

// ParticipantResults lists every question of the session with participantID's answer and score.
// Correct options are included only for questions whose answers have been shown or passed.
func (s *LiveService) ParticipantResults(ctx context.Context, sessionID, participantID string) (domain.ParticipantResults, error) {
	rec, err := s.record(ctx, sessionID)
	if err != nil {
		return domain.ParticipantResults{}, err
	}

	out := domain.ParticipantResults{SessionID: sessionID, Status: rec.state.Status, Total: len(rec.participants)}
	found := false
	for _, p := range rec.participants {
		if p.participant.ID == participantID {
			out.Participant = p.participant
			found = true
			break
		}
	}
	if !found {
		return domain.ParticipantResults{}, domain.ErrParticipantNotFound
	}
	for _, e := range rankParticipants(rec.participants) {
		if e.ParticipantID == participantID {
			out.Position = e.Position
			break
		}
	}

	answers := rec.answers
	if answers == nil {
		reader, ok := s.journal.(JournalReader)
		if !ok {
			return domain.ParticipantResults{}, domain.ErrSessionNotFound
		}
		if answers, err = reader.Answers(ctx, sessionID); err != nil {
			return domain.ParticipantResults{}, storageErr("read answers", err)
		}
	}
	mine := make(map[string]domain.ParticipantAnswer)
	for _, a := range answers {
		if a.ParticipantID == participantID {
			mine[a.QuestionID] = a
		}
	}

	out.Questions = make([]domain.QuestionOutcome, 0, len(rec.questions))
	for i, q := range rec.questions {
		outcome := domain.QuestionOutcome{QuestionID: q.ID, Number: i + 1, Text: q.Text}
		if a, ok := mine[q.ID]; ok {
			outcome.Answered = true
			outcome.OptionIDs = a.OptionIDs
			outcome.Correct = a.Correct
			outcome.Score = a.Score
			outcome.ResponseTime = a.ResponseTime
		}
		if rec.shown(i) {
			for _, opt := range q.Options {
				if opt.Correct {
					outcome.CorrectOptionIDs = append(outcome.CorrectOptionIDs, opt.ID)
				}
			}
		}
		out.Questions = append(out.Questions, outcome)
	}
	return out, nil
}

// sessionRecord is what Ranking and Results read, taken from memory or rebuilt from the journal.
type sessionRecord struct {
	state         domain.Session
	questions     []domain.Question
	questionIndex int
	participants  []participantView
	// answers is only set when the record comes from the journal.
	answers []domain.ParticipantAnswer
}

// shown reports whether the correctness of question i may be disclosed.
func (r sessionRecord) shown(i int) bool {
	switch {
	case r.state.Status == domain.StatusCompleted:
		return true
	case r.state.Status != domain.StatusActive:
		return false
	case i < r.questionIndex:
		return true
	default:
		return i == r.questionIndex && r.state.Revealed
	}
}

func (s *LiveService) record(ctx context.Context, sessionID string) (sessionRecord, error) {
	if session, ok := s.sessions.Get(sessionID); ok {
		v := session.view.Load()
		return sessionRecord{
			state:         v.state,
			questions:     session.questions,
			questionIndex: v.questionIndex,
			participants:  v.participants,
		}, nil
	}
	return s.archivedRecord(ctx, sessionID)
}

// archivedRecord rebuilds a swept session from the journal and the quiz catalog.
func (s *LiveService) archivedRecord(ctx context.Context, sessionID string) (sessionRecord, error) {
	reader, ok := s.journal.(JournalReader)
	if !ok {
		return sessionRecord{}, domain.ErrSessionNotFound
	}
	snap, err := reader.Session(ctx, sessionID)
	if err != nil {
		return sessionRecord{}, storageErr("read session", err)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, snap.QuizID)
	if err != nil {
		return sessionRecord{}, err
	}
	participants, err := reader.Participants(ctx, sessionID)
	if err != nil {
		return sessionRecord{}, storageErr("read participants", err)
	}
	answers, err := reader.Answers(ctx, sessionID)
	if err != nil {
		return sessionRecord{}, storageErr("read answers", err)
	}
	if answers == nil {
		answers = []domain.ParticipantAnswer{}
	}

	views := make([]participantView, len(participants))
	index := make(map[string]int, len(participants))
	for i, p := range participants {
		views[i] = participantView{participant: p, order: i}
		index[p.ID] = i
	}
	for _, a := range answers {
		i, ok := index[a.ParticipantID]
		if !ok {
			continue
		}
		views[i].answers++
		views[i].responseTotal += a.ResponseTime
		if a.Correct {
			views[i].correct++
		}
	}

	rec := sessionRecord{
		state:         snap,
		questions:     domain.OrderedQuestions(quiz),
		questionIndex: -1,
		participants:  views,
		answers:       answers,
	}
	for i, q := range rec.questions {
		if q.ID == snap.CurrentQuestionID {
			rec.questionIndex = i
		}
	}
	s.log.WithField("session_id", sessionID).Debug("session read from journal")
	return rec, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"quiz-room-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestRoomJoinBroadcastsRoster(t *testing.T) {
	room, _ := newTestRoom("alice")
	alice, bob := newFakeConn("c1"), newFakeConn("c2")

	require.NoError(t, room.Join("alice", alice))
	require.NoError(t, room.Join("bob", bob))

	joined := lastOf[domain.JoinedMessage](t, alice)
	require.True(t, joined.Success)
	require.Equal(t, "bob joined the room!", joined.Message)
	require.Equal(t, []domain.Member{
		{Username: "alice", IsAdmin: true},
		{Username: "bob", IsAdmin: false},
	}, joined.Users)
	require.Equal(t, 1, countOf[domain.JoinedMessage](bob))
}

func TestRoomJoinRejectsCurrentMember(t *testing.T) {
	room, _ := newTestRoom("alice")

	require.NoError(t, room.Join("alice", newFakeConn("c1")))
	require.ErrorIs(t, room.Join("alice", newFakeConn("c2")), domain.ErrAlreadyJoined)
}

func TestRoomLeaveIgnoresForeignConnection(t *testing.T) {
	room, _ := newTestRoom("alice")
	alice, bob := newFakeConn("c1"), newFakeConn("c2")
	require.NoError(t, room.Join("alice", alice))
	require.NoError(t, room.Join("bob", bob))

	// A second tab that was rejected must not evict the first one.
	require.False(t, room.Leave("bob", "c-other"))
	require.Len(t, room.Snapshot().Members, 2)

	require.True(t, room.Leave("bob", "c2"))
	left := lastOf[domain.LeftMessage](t, alice)
	require.Equal(t, "bob left the room!", left.Message)
	require.Equal(t, []domain.Member{{Username: "alice", IsAdmin: true}}, left.Users)
}

func TestRoomLoadQuestionsValidation(t *testing.T) {
	ctx := context.Background()
	provider := staticProvider(sampleQuestions())

	tests := []struct {
		name       string
		user       string
		topic      string
		difficulty string
		provider   QuestionProvider
		wantErr    error
	}{
		{name: "not admin", user: "bob", topic: "go", difficulty: "Easy", provider: provider, wantErr: domain.ErrNotAdmin},
		{name: "blank topic", user: "alice", topic: "   ", difficulty: "Easy", provider: provider, wantErr: domain.ErrInvalidTopic},
		{name: "unknown difficulty", user: "alice", topic: "go", difficulty: "Extreme", provider: provider, wantErr: domain.ErrInvalidDifficulty},
		{name: "provider failure", user: "alice", topic: "go", difficulty: "Hard", provider: failingProvider(errors.New("boom")), wantErr: domain.ErrGenerationFailed},
		{name: "short set", user: "alice", topic: "go", difficulty: "Medium", provider: staticProvider(sampleQuestions()[:9]), wantErr: domain.ErrGenerationFailed},
		{name: "answer outside options", user: "alice", topic: "go", difficulty: "Medium", provider: staticProvider(withAnswer(sampleQuestions(), 4, "E")), wantErr: domain.ErrGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, _ := newTestRoom("alice")
			alice, bob := newFakeConn("c1"), newFakeConn("c2")
			require.NoError(t, room.Join("alice", alice))
			require.NoError(t, room.Join("bob", bob))

			err := room.LoadQuestions(ctx, tt.user, tt.topic, tt.difficulty, tt.provider)

			require.ErrorIs(t, err, tt.wantErr)
			require.Zero(t, room.Snapshot().QuestionsLoaded)
			require.Zero(t, countOf[domain.QuestionsMessage](alice))
			require.Zero(t, countOf[domain.QuestionsMessage](bob))
		})
	}
}

func TestRoomLoadQuestionsConfirmsToAdminOnly(t *testing.T) {
	room, _ := newTestRoom("alice")
	alice, bob := newFakeConn("c1"), newFakeConn("c2")
	require.NoError(t, room.Join("alice", alice))
	require.NoError(t, room.Join("bob", bob))

	require.NoError(t, room.LoadQuestions(context.Background(), "alice", " history ", "Medium", staticProvider(sampleQuestions())))

	msg := lastOf[domain.QuestionsMessage](t, alice)
	require.True(t, msg.Success)
	require.True(t, msg.QuestionsAvailable)
	require.Zero(t, countOf[domain.QuestionsMessage](bob))
	require.Equal(t, domain.QuestionCount, room.Snapshot().QuestionsLoaded)
}

func TestRoomStartQuizPreconditions(t *testing.T) {
	room, _ := newTestRoom("alice")
	require.NoError(t, room.Join("alice", newFakeConn("c1")))
	require.NoError(t, room.Join("bob", newFakeConn("c2")))

	// Given no questions are loaded
	require.ErrorIs(t, room.StartQuiz("alice"), domain.ErrQuestionsNotReady)
	require.Equal(t, domain.StateWaiting, room.Snapshot().State)

	require.NoError(t, room.LoadQuestions(context.Background(), "alice", "go", "Easy", staticProvider(sampleQuestions())))
	require.ErrorIs(t, room.StartQuiz("bob"), domain.ErrNotAdmin)

	require.NoError(t, room.StartQuiz("alice"))
	require.ErrorIs(t, room.StartQuiz("alice"), domain.ErrAlreadyStarted)
}

func TestRoomStartQuizBroadcastsFirstQuestionWithoutAnswer(t *testing.T) {
	room, _, conns := startedRoom(t, "alice", "bob")

	for _, conn := range conns {
		q := lastOf[domain.QuestionMessage](t, conn)
		require.Equal(t, 1, q.QuestionNumber)
		require.Equal(t, domain.QuestionSeconds, q.TimeLeft)
		require.Equal(t, "Question 1?", q.QuestionText)
		require.Len(t, q.QuestionOptions, 4)
	}
	snap := room.Snapshot()
	require.Equal(t, domain.StateInProgress, snap.State)
	require.Equal(t, map[string]int{"alice": 0, "bob": 0}, snap.Carryover)
}

func TestRoomTimerTicksAndAdvances(t *testing.T) {
	room, sched, conns := startedRoom(t, "alice")

	sched.Advance(time.Second)
	require.Equal(t, 19, lastOf[domain.TimerMessage](t, conns["alice"]).TimeLeft)

	sched.Advance(19 * time.Second)
	q := lastOf[domain.QuestionMessage](t, conns["alice"])
	require.Equal(t, 2, q.QuestionNumber)
	require.Equal(t, domain.QuestionSeconds, room.Snapshot().TimeLeft)
	require.Equal(t, 19, countOf[domain.TimerMessage](conns["alice"]))
}

func TestRoomSubmitResponseScoring(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		question int
		option   string
		want     int
	}{
		{name: "correct at full time", elapsed: 0, question: 1, option: "A", want: 10},
		{name: "correct at last second", elapsed: 19 * time.Second, question: 1, option: "A", want: 1},
		{name: "question 3 at 14 seconds", elapsed: 46 * time.Second, question: 3, option: "B", want: 7},
		{name: "incorrect option", elapsed: 0, question: 1, option: "D", want: 0},
		{name: "already advanced question", elapsed: 25 * time.Second, question: 1, option: "A", want: 0},
		{name: "future question", elapsed: 0, question: 2, option: "C", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, sched, conns := startedRoom(t, "alice", "bob")
			sched.Advance(tt.elapsed)

			require.NoError(t, room.SubmitResponse("bob", tt.question, tt.option))

			snap := room.Snapshot()
			require.Equal(t, tt.want, snap.Scores["bob"])
			require.Equal(t, tt.want, snap.Carryover["bob"])
			resp := lastOf[domain.ResponseMessage](t, conns["bob"])
			require.True(t, resp.Success)
			require.Equal(t, tt.question, resp.QuestionNumber)
			require.Equal(t, sampleAnswers[tt.question-1], resp.CorrectAnswer)
			require.Zero(t, countOf[domain.ResponseMessage](conns["alice"]))
		})
	}
}

func TestRoomSubmitResponseDuplicateKeepsScore(t *testing.T) {
	room, sched, _ := startedRoom(t, "alice", "bob")
	sched.Advance(2 * time.Second)

	require.NoError(t, room.SubmitResponse("bob", 1, "A"))
	require.Equal(t, 9, room.Snapshot().Scores["bob"])

	require.ErrorIs(t, room.SubmitResponse("bob", 1, "B"), domain.ErrDuplicateResponse)
	require.Equal(t, 9, room.Snapshot().Scores["bob"])
}

func TestRoomSubmitResponseRejections(t *testing.T) {
	room, _ := newTestRoom("alice")
	require.NoError(t, room.Join("alice", newFakeConn("c1")))
	require.ErrorIs(t, room.SubmitResponse("alice", 1, "A"), domain.ErrNotInProgress)

	started, _, _ := startedRoom(t, "alice")
	require.ErrorIs(t, started.SubmitResponse("alice", 0, "A"), domain.ErrInvalidQuestion)
	require.ErrorIs(t, started.SubmitResponse("alice", 11, "A"), domain.ErrInvalidQuestion)
	require.ErrorIs(t, started.SubmitResponse("mallory", 1, "A"), domain.ErrNotMember)
}

func TestRoomFullRunWithoutAnswers(t *testing.T) {
	room, sched, conns := startedRoom(t, "alice", "bob", "carol")

	sched.Advance(domain.QuestionCount * domain.QuestionSeconds * time.Second)

	snap := room.Snapshot()
	require.Equal(t, domain.StateFinished, snap.State)
	require.Zero(t, sched.Pending())
	board := lastOf[domain.LeaderboardMessage](t, conns["carol"])
	require.Equal(t, "Quiz completed!", board.Message)
	require.Equal(t, []domain.Standing{
		{Username: "alice", IsAdmin: true, Score: 0},
		{Username: "bob", Score: 0},
		{Username: "carol", Score: 0},
	}, board.Users)
	require.Equal(t, domain.QuestionCount, countOf[domain.QuestionMessage](conns["bob"]))

	// The clock is stopped: nothing else is broadcast.
	before := conns["bob"].len()
	sched.Advance(time.Minute)
	require.Equal(t, before, conns["bob"].len())
}

func TestRoomLeaderboardRanksByScoreThenJoinOrder(t *testing.T) {
	room, sched, conns := startedRoom(t, "alice", "bob", "carol")

	require.NoError(t, room.SubmitResponse("carol", 1, "A"))
	sched.Advance(4 * time.Second)
	require.NoError(t, room.SubmitResponse("alice", 1, "A"))
	// bob disconnects but stays on the leaderboard
	require.True(t, room.Leave("bob", "bob-conn"))
	sched.Advance(domain.QuestionCount * domain.QuestionSeconds * time.Second)

	board := lastOf[domain.LeaderboardMessage](t, conns["carol"])
	require.Equal(t, []domain.Standing{
		{Username: "carol", Score: 10},
		{Username: "alice", IsAdmin: true, Score: 8},
		{Username: "bob", Score: 0},
	}, board.Users)
}

func TestRoomLateJoinerRejectedWhileRunning(t *testing.T) {
	room, _, _ := startedRoom(t, "alice")

	require.ErrorIs(t, room.Join("dave", newFakeConn("c9")), domain.ErrQuizAlreadyStarted)
}

func TestRoomRejoinMidQuizResyncs(t *testing.T) {
	room, sched, conns := startedRoom(t, "alice", "bob")

	sched.Advance(3 * time.Second)
	require.NoError(t, room.SubmitResponse("bob", 1, "A"))
	require.True(t, room.Leave("bob", "bob-conn"))
	require.Equal(t, map[string]int{"alice": 0}, room.Snapshot().Scores)

	sched.Advance(2 * time.Second)
	again := newFakeConn("bob-conn-2")
	require.NoError(t, room.Join("bob", again))

	require.Equal(t, 9, room.Snapshot().Scores["bob"])
	details := lastOf[domain.QuizDetailsMessage](t, again)
	require.Equal(t, "quiz", details.State)
	require.NotNil(t, details.TimeLeft)
	require.Equal(t, 15, *details.TimeLeft)
	require.NotNil(t, details.Question)
	require.Equal(t, 1, details.Question.Number)
	require.NotNil(t, details.HasResponded)
	require.True(t, *details.HasResponded)
	require.Equal(t, "A", details.UserAnswer)
	require.Equal(t, "A", details.CorrectAnswer)
	require.Equal(t, 1, countOf[domain.JoinedMessage](again))
	require.Equal(t, "bob joined the room!", lastOf[domain.JoinedMessage](t, conns["alice"]).Message)
}

func TestRoomRejoinWithoutAnswerHidesCorrectOption(t *testing.T) {
	room, sched, _ := startedRoom(t, "alice", "bob")
	require.True(t, room.Leave("bob", "bob-conn"))
	sched.Advance(21 * time.Second)

	again := newFakeConn("bob-conn-2")
	require.NoError(t, room.Join("bob", again))

	details := lastOf[domain.QuizDetailsMessage](t, again)
	require.Equal(t, 2, details.Question.Number)
	require.Equal(t, 19, *details.TimeLeft)
	require.False(t, *details.HasResponded)
	require.Empty(t, details.CorrectAnswer)
}

func TestRoomRejoinAfterFinishGetsLeaderboardOnly(t *testing.T) {
	room, sched, conns := startedRoom(t, "alice", "bob")
	require.NoError(t, room.SubmitResponse("bob", 1, "A"))
	sched.Advance(domain.QuestionCount * domain.QuestionSeconds * time.Second)

	require.True(t, room.Leave("bob", "bob-conn"))
	require.Zero(t, countOf[domain.LeftMessage](conns["alice"]))

	again := newFakeConn("bob-conn-2")
	require.NoError(t, room.Join("bob", again))
	require.Zero(t, countOf[domain.JoinedMessage](again))
	details := lastOf[domain.QuizDetailsMessage](t, again)
	require.Equal(t, "result", details.State)
	require.Nil(t, details.Question)
	require.Equal(t, []domain.Standing{
		{Username: "bob", Score: 10},
		{Username: "alice", IsAdmin: true, Score: 0},
	}, details.Users)
}

func TestRoomReset(t *testing.T) {
	room, sched, conns := startedRoom(t, "alice", "bob")

	require.ErrorIs(t, room.Reset("alice"), domain.ErrNotFinished)

	require.NoError(t, room.SubmitResponse("bob", 1, "A"))
	sched.Advance(domain.QuestionCount * domain.QuestionSeconds * time.Second)
	require.ErrorIs(t, room.Reset("bob"), domain.ErrNotAdmin)

	require.NoError(t, room.Reset("alice"))

	snap := room.Snapshot()
	require.Equal(t, domain.StateWaiting, snap.State)
	require.Zero(t, snap.QuestionsLoaded)
	require.Equal(t, map[string]int{"alice": 0, "bob": 0}, snap.Scores)
	require.Empty(t, snap.Carryover)
	reset := lastOf[domain.ResetMessage](t, conns["bob"])
	require.True(t, reset.Success)
	require.Len(t, reset.Users, 2)

	// A second run behaves like the first one.
	require.ErrorIs(t, room.StartQuiz("alice"), domain.ErrQuestionsNotReady)
	require.NoError(t, room.LoadQuestions(context.Background(), "alice", "go", "Easy", staticProvider(sampleQuestions())))
	require.NoError(t, room.StartQuiz("alice"))
	require.NoError(t, room.SubmitResponse("bob", 1, "A"))
	require.Equal(t, 10, room.Snapshot().Scores["bob"])
	sched.Advance(domain.QuestionCount * domain.QuestionSeconds * time.Second)
	require.Equal(t, domain.StateFinished, room.Snapshot().State)
}

func TestRoomLoadQuestionsRejectedOnceStarted(t *testing.T) {
	room, _, _ := startedRoom(t, "alice")

	err := room.LoadQuestions(context.Background(), "alice", "go", "Easy", staticProvider(sampleQuestions()))
	require.ErrorIs(t, err, domain.ErrAlreadyStarted)
}

func TestRoomTimerPanicIsContained(t *testing.T) {
	room, sched, _ := startedRoom(t, "alice")
	room.mu.Lock()
	room.members["alice"].conn = panickingConn{}
	room.mu.Unlock()

	require.NotPanics(t, func() { sched.Advance(time.Second) })
	require.Equal(t, 19, room.Snapshot().TimeLeft)
}

// helpers

var sampleAnswers = []string{"A", "C", "B", "D", "A", "B", "C", "D", "A", "B"}

func sampleQuestions() []domain.Question {
	questions := make([]domain.Question, domain.QuestionCount)
	for i := range questions {
		questions[i] = domain.Question{
			Number: i + 1,
			Text:   fmt.Sprintf("Question %d?", i+1),
			Options: map[string]string{
				"A": "first", "B": "second", "C": "third", "D": "fourth",
			},
			Answer: sampleAnswers[i],
		}
	}
	return questions
}

func withAnswer(questions []domain.Question, index int, answer string) []domain.Question {
	questions[index].Answer = answer
	return questions
}

type providerFunc func(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error)

func (f providerFunc) Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	return f(ctx, topic, difficulty)
}

func staticProvider(questions []domain.Question) QuestionProvider {
	return providerFunc(func(context.Context, string, domain.Difficulty) ([]domain.Question, error) {
		return questions, nil
	})
}

func failingProvider(err error) QuestionProvider {
	return providerFunc(func(context.Context, string, domain.Difficulty) ([]domain.Question, error) {
		return nil, err
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRoom(admin string) (*Room, *ManualScheduler) {
	sched := NewManualScheduler()
	return newRoom("123456", admin, sched, discardLogger(), nil), sched
}

// startedRoom builds a running quiz whose first user is the admin. Connection
// ids are "<user>-conn".
func startedRoom(t *testing.T, users ...string) (*Room, *ManualScheduler, map[string]*fakeConn) {
	t.Helper()
	room, sched := newTestRoom(users[0])
	conns := make(map[string]*fakeConn, len(users))
	for _, user := range users {
		conns[user] = newFakeConn(user + "-conn")
		require.NoError(t, room.Join(user, conns[user]))
	}
	require.NoError(t, room.LoadQuestions(context.Background(), users[0], "go", "Easy", staticProvider(sampleQuestions())))
	require.NoError(t, room.StartQuiz(users[0]))
	return room, sched, conns
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	msgs   []any
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.msgs = append(c.msgs, msg)
	return true
}

func (c *fakeConn) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func lastOf[T any](t *testing.T, c *fakeConn) T {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if msg, ok := c.msgs[i].(T); ok {
			return msg
		}
	}
	var zero T
	t.Fatalf("connection %s received no %T", c.id, zero)
	return zero
}

func countOf[T any](c *fakeConn) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, msg := range c.msgs {
		if _, ok := msg.(T); ok {
			n++
		}
	}
	return n
}

type panickingConn struct{}

func (panickingConn) ID() string    { return "panic" }
func (panickingConn) Send(any) bool { panic("write failed") }

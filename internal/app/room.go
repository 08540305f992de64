package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"quiz-room-service/internal/domain"

	"github.com/samber/lo"
)

const (
	questionTick = time.Second
	// IdleGrace is how long a room may stay without connected members before it is deleted.
	IdleGrace = 120 * time.Second
)

// Conn is a room's handle on a live connection. The transport owns the
// connection; the room only sends through it and never closes it.
type Conn interface {
	ID() string
	// Send enqueues msg without blocking and reports whether it was accepted.
	Send(msg any) bool
}

type participant struct {
	username string
	conn     Conn
	isAdmin  bool
	score    int
}

type responseKey struct {
	username string
	question int
}

type response struct {
	option   string
	timeLeft int
}

// Room is one quiz session. Every exported method serializes on the room
// mutex, and so do the room's own timer callbacks.
type Room struct {
	code   string
	admin  string
	log    *slog.Logger
	sched  Scheduler
	onIdle func(code string)

	mu        sync.Mutex
	state     domain.RoomState
	questions []domain.Question
	index     int
	timeLeft  int
	members   map[string]*participant
	order     []string
	roster    []string
	carryover map[string]int
	responses map[responseKey]response
	closed    bool

	stopTick   func()
	tickGen    uint64
	cancelIdle func()
	idleGen    uint64
}

func newRoom(code, admin string, sched Scheduler, log *slog.Logger, onIdle func(string)) *Room {
	r := &Room{
		code:      code,
		admin:     admin,
		log:       log.With("room", code),
		sched:     sched,
		onIdle:    onIdle,
		state:     domain.StateWaiting,
		timeLeft:  domain.QuestionSeconds,
		members:   make(map[string]*participant),
		carryover: make(map[string]int),
		responses: make(map[responseKey]response),
	}
	r.mu.Lock()
	r.armIdleLocked()
	r.mu.Unlock()
	return r
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Admin returns the username of the room creator.
func (r *Room) Admin() string { return r.admin }

// Join admits username over conn. Users that were part of the current run
// may always come back; anyone else is only admitted while waiting.
func (r *Room) Join(username string, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomNotFound
	}
	if _, ok := r.members[username]; ok {
		return domain.ErrAlreadyJoined
	}
	score, known := r.carryover[username]
	if r.state != domain.StateWaiting && !known {
		return domain.ErrQuizAlreadyStarted
	}

	r.cancelIdleLocked()
	r.members[username] = &participant{
		username: username,
		conn:     conn,
		isAdmin:  username == r.admin,
		score:    score,
	}
	r.order = append(r.order, username)
	r.log.Info("member joined", "user", username, "state", r.state.String(), "members", len(r.members))

	if r.state != domain.StateFinished {
		r.broadcastLocked(domain.JoinedMessage{
			Type:    domain.TypeJoined,
			Success: true,
			Message: username + " joined the room!",
			Users:   r.membersLocked(),
		})
	}
	if r.state != domain.StateWaiting {
		r.sendLocked(conn, r.detailsLocked(username))
	}
	return nil
}

// Leave removes username if it is still connected through connID (any
// connection when connID is empty). It reports whether a member was removed.
func (r *Room) Leave(username, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[username]
	if !ok || (connID != "" && p.conn != nil && p.conn.ID() != connID) {
		return false
	}
	delete(r.members, username)
	r.order = lo.Without(r.order, username)
	r.log.Info("member left", "user", username, "members", len(r.members))

	if len(r.members) == 0 && !r.closed {
		r.armIdleLocked()
	}
	if r.state == domain.StateFinished {
		return true
	}
	r.broadcastLocked(domain.LeftMessage{
		Type:    domain.TypeLeft,
		Success: true,
		Message: username + " left the room!",
		Users:   r.membersLocked(),
	})
	return true
}

// LoadQuestions asks provider for a fresh question set on behalf of the admin.
// The provider is called without holding the room lock.
func (r *Room) LoadQuestions(ctx context.Context, username, topic, difficulty string, provider QuestionProvider) error {
	r.mu.Lock()
	err := r.checkLoadLocked(username)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.ErrInvalidTopic
	}
	level, err := domain.ParseDifficulty(difficulty)
	if err != nil {
		return err
	}

	raw, err := provider.Generate(ctx, topic, level)
	if err != nil {
		r.log.Warn("question generation failed", "topic", topic, "difficulty", level, "err", err)
		return fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	questions, err := domain.ValidateQuestionSet(raw)
	if err != nil {
		r.log.Warn("provider returned a malformed question set", "topic", topic, "difficulty", level, "err", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLoadLocked(username); err != nil {
		return err
	}
	r.questions = questions
	r.log.Info("questions loaded", "topic", topic, "difficulty", level)
	if p, ok := r.members[username]; ok {
		r.sendLocked(p.conn, domain.QuestionsMessage{
			Type:               domain.TypeQuestions,
			Success:            true,
			Message:            "Questions generated!",
			QuestionsAvailable: len(r.questions) == domain.QuestionCount,
		})
	}
	return nil
}

func (r *Room) checkLoadLocked(username string) error {
	switch {
	case r.closed:
		return domain.ErrRoomNotFound
	case username != r.admin:
		return domain.ErrNotAdmin
	case r.state != domain.StateWaiting:
		return domain.ErrAlreadyStarted
	}
	return nil
}

// StartQuiz moves the room from waiting to the first question and starts the clock.
func (r *Room) StartQuiz(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return domain.ErrRoomNotFound
	case username != r.admin:
		return domain.ErrNotAdmin
	case r.state != domain.StateWaiting:
		return domain.ErrAlreadyStarted
	case len(r.questions) < domain.QuestionCount:
		return domain.ErrQuestionsNotReady
	}

	r.roster = slices.Clone(r.order)
	r.carryover = make(map[string]int, len(r.roster))
	for _, name := range r.roster {
		r.carryover[name] = 0
		r.members[name].score = 0
	}
	r.responses = make(map[responseKey]response)
	r.state = domain.StateInProgress
	r.index = 0
	r.timeLeft = domain.QuestionSeconds
	r.log.Info("quiz started", "players", len(r.roster))

	r.broadcastQuestionLocked()
	r.startTickerLocked()
	return nil
}

// SubmitResponse records username's answer. Only a correct answer to the
// active question scores, and faster answers score more.
func (r *Room) SubmitResponse(username string, questionNumber int, option string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomNotFound
	}
	if r.state != domain.StateInProgress {
		return domain.ErrNotInProgress
	}
	p, ok := r.members[username]
	if !ok {
		return domain.ErrNotMember
	}
	if questionNumber < 1 || questionNumber > len(r.questions) {
		return domain.ErrInvalidQuestion
	}
	key := responseKey{username: username, question: questionNumber}
	if _, dup := r.responses[key]; dup {
		return domain.ErrDuplicateResponse
	}

	r.responses[key] = response{option: option, timeLeft: r.timeLeft}
	question := r.questions[questionNumber-1]
	points := 0
	if questionNumber == r.index+1 && option == question.Answer {
		points = domain.Points(r.timeLeft)
	}
	p.score += points
	r.carryover[username] = p.score
	r.log.Debug("response recorded", "user", username, "question", questionNumber, "time_left", r.timeLeft, "points", points)

	r.sendLocked(p.conn, domain.ResponseMessage{
		Type:           domain.TypeResponse,
		Success:        true,
		Message:        "Added the response",
		QuestionNumber: questionNumber,
		CorrectAnswer:  question.Answer,
	})
	return nil
}

// Reset returns a finished room to waiting with a clean slate.
func (r *Room) Reset(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return domain.ErrRoomNotFound
	case username != r.admin:
		return domain.ErrNotAdmin
	case r.state != domain.StateFinished:
		return domain.ErrNotFinished
	}

	r.stopTickerLocked()
	r.questions = nil
	r.responses = make(map[responseKey]response)
	r.carryover = make(map[string]int)
	r.roster = nil
	r.index = 0
	r.timeLeft = domain.QuestionSeconds
	r.state = domain.StateWaiting
	for _, p := range r.members {
		p.score = 0
	}
	r.log.Info("quiz reset")

	r.broadcastLocked(domain.ResetMessage{
		Type:    domain.TypeResetQuiz,
		Success: true,
		Users:   r.membersLocked(),
	})
	return nil
}

// Snapshot is a point-in-time copy of a room's state.
type Snapshot struct {
	Code            string
	Admin           string
	State           domain.RoomState
	QuestionsLoaded int
	QuestionNumber  int
	TimeLeft        int
	Members         []domain.Member
	Scores          map[string]int
	Carryover       map[string]int
	Closed          bool
}

// Snapshot copies the current room state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	scores := make(map[string]int, len(r.members))
	for name, p := range r.members {
		scores[name] = p.score
	}
	number := 0
	if r.state == domain.StateInProgress {
		number = r.index + 1
	}
	return Snapshot{
		Code:            r.code,
		Admin:           r.admin,
		State:           r.state,
		QuestionsLoaded: len(r.questions),
		QuestionNumber:  number,
		TimeLeft:        r.timeLeft,
		Members:         r.membersLocked(),
		Scores:          scores,
		Carryover:       lo.Assign(r.carryover),
		Closed:          r.closed,
	}
}

func (r *Room) tick(gen uint64) {
	defer r.recoverTimer("tick")
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.tickGen || r.closed || r.state != domain.StateInProgress {
		return
	}
	r.timeLeft--
	if r.timeLeft > 0 {
		r.broadcastLocked(domain.TimerMessage{Type: domain.TypeTimer, TimeLeft: r.timeLeft})
		return
	}
	if r.index == len(r.questions)-1 {
		r.stopTickerLocked()
		r.state = domain.StateFinished
		standings := r.standingsLocked()
		r.log.Info("quiz finished", "players", len(standings))
		r.broadcastLocked(domain.LeaderboardMessage{
			Type:    domain.TypeLeaderboards,
			Success: true,
			Message: "Quiz completed!",
			Users:   standings,
		})
		return
	}
	r.timeLeft = domain.QuestionSeconds
	r.index++
	r.broadcastQuestionLocked()
}

func (r *Room) expire(gen uint64) {
	defer r.recoverTimer("idle expiry")
	r.mu.Lock()
	if gen != r.idleGen || r.closed || len(r.members) > 0 {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.cancelIdle = nil
	r.stopTickerLocked()
	r.mu.Unlock()

	r.log.Info("room expired after idle grace")
	if r.onIdle != nil {
		r.onIdle(r.code)
	}
}

// recoverTimer keeps a fault in one room's timer from taking down the process.
func (r *Room) recoverTimer(what string) {
	if rec := recover(); rec != nil {
		r.log.Error("panic in room timer", "timer", what, "panic", rec, "stack", string(debug.Stack()))
	}
}

func (r *Room) startTickerLocked() {
	r.stopTickerLocked()
	gen := r.tickGen
	r.stopTick = r.sched.Every(questionTick, func() { r.tick(gen) })
}

func (r *Room) stopTickerLocked() {
	if r.stopTick != nil {
		r.stopTick()
		r.stopTick = nil
	}
	r.tickGen++
}

func (r *Room) armIdleLocked() {
	r.cancelIdleLocked()
	gen := r.idleGen
	r.cancelIdle = r.sched.After(IdleGrace, func() { r.expire(gen) })
}

func (r *Room) cancelIdleLocked() {
	if r.cancelIdle != nil {
		r.cancelIdle()
		r.cancelIdle = nil
	}
	r.idleGen++
}

func (r *Room) broadcastQuestionLocked() {
	q := r.questions[r.index]
	r.broadcastLocked(domain.QuestionMessage{
		Type:            domain.TypeQuestion,
		TimeLeft:        domain.QuestionSeconds,
		QuestionNumber:  r.index + 1,
		QuestionText:    q.Text,
		QuestionOptions: q.Options,
	})
}

func (r *Room) broadcastLocked(msg any) {
	for _, name := range r.order {
		r.sendLocked(r.members[name].conn, msg)
	}
}

func (r *Room) sendLocked(conn Conn, msg any) {
	if conn == nil {
		return
	}
	if !conn.Send(msg) {
		r.log.Debug("skipped send to closed connection", "conn", conn.ID())
	}
}

func (r *Room) membersLocked() []domain.Member {
	return lo.Map(r.order, func(name string, _ int) domain.Member {
		return domain.Member{Username: name, IsAdmin: r.members[name].isAdmin}
	})
}

// standingsLocked ranks everyone who played this run, connected or not.
// Ties keep roster order, so the earlier joiner ranks first.
func (r *Room) standingsLocked() []domain.Standing {
	standings := lo.Map(r.roster, func(name string, _ int) domain.Standing {
		return domain.Standing{Username: name, IsAdmin: name == r.admin, Score: r.carryover[name]}
	})
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	return standings
}

func (r *Room) detailsLocked(username string) domain.QuizDetailsMessage {
	msg := domain.QuizDetailsMessage{
		Type:    domain.TypeQuizDetails,
		Success: true,
		State:   r.state.String(),
	}
	switch r.state {
	case domain.StateInProgress:
		q := r.questions[r.index]
		view := q.View()
		timeLeft := r.timeLeft
		resp, responded := r.responses[responseKey{username: username, question: r.index + 1}]
		msg.TimeLeft = &timeLeft
		msg.Question = &view
		msg.HasResponded = &responded
		if responded {
			msg.UserAnswer = resp.option
			msg.CorrectAnswer = q.Answer
		}
	case domain.StateFinished:
		msg.Users = r.standingsLocked()
	}
	return msg
}

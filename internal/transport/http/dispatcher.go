package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const defaultGenerationTimeout = 30 * time.Second

// Session is an authenticated connection as seen by the dispatcher. Build it
// with NewSession.
type Session struct {
	Identity domain.Identity
	Conn     app.Conn
	gen      *generation
}

// generation tracks the single question generation a connection may run.
type generation struct {
	running atomic.Bool
	wg      sync.WaitGroup
}

func NewSession(identity domain.Identity, conn app.Conn) Session {
	return Session{Identity: identity, Conn: conn, gen: &generation{}}
}

// Wait blocks until the session's background generation, if any, is done.
func (s Session) Wait() {
	s.gen.wg.Wait()
}

// Dispatcher routes inbound client messages to the caller's room.
type Dispatcher struct {
	registry          *app.Registry
	provider          app.QuestionProvider
	log               *slog.Logger
	validate          *validator.Validate
	generationTimeout time.Duration
}

func NewDispatcher(registry *app.Registry, provider app.QuestionProvider, log *slog.Logger, generationTimeout time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if generationTimeout <= 0 {
		generationTimeout = defaultGenerationTimeout
	}
	return &Dispatcher{
		registry:          registry,
		provider:          provider,
		log:               log,
		validate:          newValidator(),
		generationTimeout: generationTimeout,
	}
}

type envelope struct {
	Type string `json:"type"`
}

type joinRoomPayload struct {
	RoomID string `json:"room_id" validate:"required"`
}

type generatePayload struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
}

type addResponsePayload struct {
	QuestionNumber int    `json:"question_number" validate:"min=1"`
	Option         string `json:"option" validate:"required"`
}

// Handle processes one raw inbound message. Failures are reported privately
// to the sender; a panic is contained to this message.
func (d *Dispatcher) Handle(ctx context.Context, s Session, raw []byte) {
	log := d.log.With("user", s.Identity.Username, "conn", s.Conn.ID())
	defer d.recoverPanic(s, log)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.Conn.Send(domain.Failure{Type: domain.TypeError, Success: false, Message: "invalid message"})
		return
	}
	log.Debug("inbound message", "type", env.Type)

	switch env.Type {
	case domain.InJoinRoom:
		d.reply(s, domain.TypeJoined, d.joinRoom(s, raw))
	case domain.InGenerateQuestions:
		d.startGeneration(ctx, s, raw, log)
	case domain.InStartQuiz:
		d.reply(s, domain.TypeStartQuiz, d.withRoom(s, func(room *app.Room) error {
			return room.StartQuiz(s.Identity.Username)
		}))
	case domain.InAddResponse:
		d.reply(s, domain.TypeResponse, d.addResponse(s, raw))
	case domain.InResetQuiz:
		d.reply(s, domain.TypeResetQuiz, d.withRoom(s, func(room *app.Room) error {
			return room.Reset(s.Identity.Username)
		}))
	default:
		s.Conn.Send(domain.Failure{Type: domain.TypeError, Success: false, Message: "unsupported message type"})
	}
}

// Disconnect removes the membership held by this connection, if any.
func (d *Dispatcher) Disconnect(s Session) {
	username := s.Identity.Username
	code, err := d.registry.RoomOf(username)
	if err != nil {
		return
	}
	room, err := d.registry.Resolve(code)
	if err != nil {
		d.registry.Unbind(username)
		return
	}
	if room.Leave(username, s.Conn.ID()) {
		d.registry.Unbind(username)
	}
}

func (d *Dispatcher) joinRoom(s Session, raw []byte) error {
	var p joinRoomPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	username := s.Identity.Username
	room, err := d.registry.Resolve(p.RoomID)
	if err != nil {
		return err
	}
	if current, err := d.registry.RoomOf(username); err == nil && current != p.RoomID {
		return domain.ErrAlreadyInAnotherRoom
	}
	if err := room.Join(username, s.Conn); err != nil {
		return err
	}
	if err := d.registry.Bind(username, p.RoomID); err != nil {
		room.Leave(username, s.Conn.ID())
		return err
	}
	return nil
}

// startGeneration runs the provider off the read loop. A connection runs one
// generation at a time.
func (d *Dispatcher) startGeneration(ctx context.Context, s Session, raw []byte, log *slog.Logger) {
	if !s.gen.running.CompareAndSwap(false, true) {
		d.reply(s, domain.TypeQuestions, domain.ErrGenerationInProgress)
		return
	}
	s.gen.wg.Add(1)
	go func() {
		defer s.gen.wg.Done()
		defer s.gen.running.Store(false)
		defer d.recoverPanic(s, log)
		d.reply(s, domain.TypeQuestions, d.generateQuestions(ctx, s, raw))
	}()
}

func (d *Dispatcher) recoverPanic(s Session, log *slog.Logger) {
	if rec := recover(); rec != nil {
		log.Error("panic while handling message", "panic", rec, "stack", string(debug.Stack()))
		s.Conn.Send(domain.Failure{Type: domain.TypeError, Success: false, Message: domain.PublicMessage(errors.New("internal"))})
	}
}

func (d *Dispatcher) generateQuestions(ctx context.Context, s Session, raw []byte) error {
	var p generatePayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.withRoom(s, func(room *app.Room) error {
		ctx, cancel := context.WithTimeout(ctx, d.generationTimeout)
		defer cancel()
		return room.LoadQuestions(ctx, s.Identity.Username, p.Topic, p.Difficulty, d.provider)
	})
}

func (d *Dispatcher) addResponse(s Session, raw []byte) error {
	var p addResponsePayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.withRoom(s, func(room *app.Room) error {
		return room.SubmitResponse(s.Identity.Username, p.QuestionNumber, p.Option)
	})
}

func (d *Dispatcher) withRoom(s Session, fn func(*app.Room) error) error {
	code, err := d.registry.RoomOf(s.Identity.Username)
	if err != nil {
		return err
	}
	room, err := d.registry.Resolve(code)
	if err != nil {
		return err
	}
	return fn(room)
}

func (d *Dispatcher) decode(raw []byte, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		d.log.Debug("undecodable payload", "err", err)
		return domain.ErrInvalidPayload
	}
	err := d.validate.Struct(into)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string { return fe.Field() })
		return fmt.Errorf("%w: missing or invalid %s", domain.ErrInvalidPayload, strings.Join(fields, ", "))
	}
	return err
}

func (d *Dispatcher) reply(s Session, messageType string, err error) {
	if err == nil {
		return
	}
	d.log.Debug("request rejected", "user", s.Identity.Username, "type", messageType, "err", err)
	s.Conn.Send(domain.NewFailure(messageType, err))
}

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

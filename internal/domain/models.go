package domain

import (
	"fmt"

	"github.com/samber/lo"
)

const (
	// QuestionCount is the exact size of a playable question set.
	QuestionCount = 10
	// QuestionSeconds is how long each question stays open.
	QuestionSeconds = 20
)

// Identity is the authenticated user behind a connection.
type Identity struct {
	ID       string
	Username string
}

// Difficulty is one of the levels the question generator understands.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists the recognized levels in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty maps raw client input to a Difficulty.
func ParseDifficulty(raw string) (Difficulty, error) {
	d := Difficulty(raw)
	if !lo.Contains(Difficulties, d) {
		return "", fmt.Errorf("%w: %q must be one of Easy, Medium, Hard", ErrInvalidDifficulty, raw)
	}
	return d, nil
}

// RoomState is the phase of a room's quiz lifecycle.
type RoomState int

const (
	StateWaiting RoomState = iota
	StateInProgress
	StateFinished
)

// String returns the wire name of the state.
func (s RoomState) String() string {
	switch s {
	case StateInProgress:
		return "quiz"
	case StateFinished:
		return "result"
	default:
		return "waiting"
	}
}

// Question is one multiple-choice question of a generated set.
type Question struct {
	Number  int               `json:"question_number"`
	Text    string            `json:"text" validate:"required"`
	Options map[string]string `json:"options" validate:"len=4,dive,keys,oneof=A B C D,endkeys,required"`
	Answer  string            `json:"answer" validate:"required,oneof=A B C D"`
}

// View strips the answer so the question can be shown to players.
func (q Question) View() QuestionView {
	return QuestionView{Number: q.Number, Text: q.Text, Options: q.Options}
}

// QuestionView is a question without its answer.
type QuestionView struct {
	Number  int               `json:"question_number"`
	Text    string            `json:"text"`
	Options map[string]string `json:"options"`
}

// Member is a roster entry as shown while waiting or playing.
type Member struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Standing is a leaderboard row.
type Standing struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	Score    int    `json:"score"`
}

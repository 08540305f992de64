package domain

import (
	"fmt"
	"maps"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateQuestionSet checks a provider result and returns a normalized copy
// numbered 1..QuestionCount. Any shape problem is an ErrGenerationFailed.
func ValidateQuestionSet(questions []Question) ([]Question, error) {
	if len(questions) != QuestionCount {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", ErrGenerationFailed, QuestionCount, len(questions))
	}
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if err := validate.Struct(q); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrGenerationFailed, i+1, err)
		}
		q.Number = i + 1
		q.Options = maps.Clone(q.Options)
		out[i] = q
	}
	return out, nil
}

// Points is the score for a correct answer given with timeLeft seconds on the clock.
func Points(timeLeft int) int {
	if timeLeft <= 0 {
		return 0
	}
	return (timeLeft + 1) / 2
}

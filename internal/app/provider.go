//go:generate go run go.uber.org/mock/mockgen -source=provider.go -destination=../mocks/mock_question_provider.go -package=mocks
package app

import (
	"context"

	"quiz-room-service/internal/domain"
)

// QuestionProvider generates question sets (generator service, question bank, cache...).
type QuestionProvider interface {
	Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error)
}

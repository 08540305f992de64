package memory

import (
	"context"
	"strings"

	"quiz-room-service/internal/domain"
)

// AnyTopic is the StaticQuestionBank entry served when no set matches the topic.
const AnyTopic = "*"

// StaticQuestionBank serves fixed question sets keyed by topic (useful for tests/demos).
// Difficulty is ignored.
type StaticQuestionBank struct {
	sets map[string][]domain.Question
}

func NewStaticQuestionBank(sets map[string][]domain.Question) *StaticQuestionBank {
	normalized := make(map[string][]domain.Question, len(sets))
	for topic, questions := range sets {
		normalized[strings.ToLower(strings.TrimSpace(topic))] = questions
	}
	return &StaticQuestionBank{sets: normalized}
}

func (b *StaticQuestionBank) Generate(_ context.Context, topic string, _ domain.Difficulty) ([]domain.Question, error) {
	if questions, ok := b.sets[strings.ToLower(strings.TrimSpace(topic))]; ok {
		return questions, nil
	}
	if questions, ok := b.sets[AnyTopic]; ok {
		return questions, nil
	}
	return nil, &domain.ProviderError{Message: "no questions are available for this topic, try another one"}
}

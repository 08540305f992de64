package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionBank serves stored question sets as JSONB from Postgres.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

// Generate picks a random stored set for topic and difficulty.
func (b *QuestionBank) Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx,
		`SELECT data FROM question_sets WHERE lower(topic) = lower($1) AND difficulty = $2 ORDER BY random() LIMIT 1`,
		strings.TrimSpace(topic), string(difficulty),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ProviderError{Message: "no questions are available for this topic yet, try another one"}
	}
	if err != nil {
		return nil, fmt.Errorf("load question set: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal question set: %w", err)
	}
	return questions, nil
}

// Save stores a question set under topic and difficulty.
func (b *QuestionBank) Save(ctx context.Context, topic string, difficulty domain.Difficulty, questions []domain.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal question set: %w", err)
	}
	_, err = b.pool.Exec(ctx,
		`INSERT INTO question_sets (topic, difficulty, data) VALUES ($1, $2, $3)`,
		strings.TrimSpace(topic), string(difficulty), string(data),
	)
	if err != nil {
		return fmt.Errorf("save question set: %w", err)
	}
	return nil
}

// ArchivingSource stores every well-formed set produced by the generator in
// the bank, and serves from the bank when the generator fails.
type ArchivingSource struct {
	generator memory.QuestionSource
	bank      *QuestionBank
	log       *slog.Logger
}

func NewArchivingSource(generator memory.QuestionSource, bank *QuestionBank, log *slog.Logger) *ArchivingSource {
	if log == nil {
		log = slog.Default()
	}
	return &ArchivingSource{generator: generator, bank: bank, log: log}
}

func (s *ArchivingSource) Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	questions, genErr := s.generator.Generate(ctx, topic, difficulty)
	if genErr == nil {
		if _, err := domain.ValidateQuestionSet(questions); err == nil {
			if err := s.bank.Save(ctx, topic, difficulty, questions); err != nil {
				s.log.Warn("archiving question set failed", "topic", topic, "difficulty", difficulty, "err", err)
			}
		}
		return questions, nil
	}

	stored, err := s.bank.Generate(ctx, topic, difficulty)
	if err != nil {
		return nil, genErr
	}
	s.log.Info("generator failed, serving archived question set", "topic", topic, "difficulty", difficulty, "err", genErr)
	return stored, nil
}

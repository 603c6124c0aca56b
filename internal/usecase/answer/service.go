package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/session"
)

// Service answers user questions with retrieval-grounded generation.
type Service struct {
	retriever retriever
	generator domain.Generator
	sessions  sessions
	topK      int
	logger    *zap.Logger

	now func() time.Time
}

// New creates the answer service. topK is the number of chunks retrieved
// per question.
func New(
	r retriever,
	g domain.Generator,
	s sessions,
	topK int,
	logger *zap.Logger,
) *Service {
	return &Service{
		retriever: r,
		generator: g,
		sessions:  s,
		topK:      topK,
		logger:    logger,
		now:       time.Now,
	}
}

// Answer runs one query turn for the session. Operations against the same
// session are serialized: each turn sees the history left by the previous
// completed turn. On success both the user question and the assistant reply
// are appended to the session; if generation fails, only the user turn is
// recorded so the session reflects what the user actually said.
func (s *Service) Answer(ctx context.Context, sessionID, question string) (domain.Answer, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return domain.Answer{}, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("question is blank: %w", domain.ErrInvalidArgument)
	}

	s.sessions.Lock(sessionID)
	defer s.sessions.Unlock(sessionID)

	history := s.sessions.History(sessionID)

	chunks, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		// Degrade to an ungrounded answer rather than failing the turn.
		s.logger.Warn("Retrieval failed, answering without context",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		chunks = nil
	}

	prompt := BuildPrompt(chunks, history, question)

	result, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		s.sessions.Append(sessionID, domain.NewTurn(domain.RoleUser, question, s.now()))
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	now := s.now()
	s.sessions.Append(sessionID,
		domain.NewTurn(domain.RoleUser, question, now),
		domain.NewTurn(domain.RoleAssistant, result.Text, now),
	)

	outcome := "grounded"
	if len(chunks) == 0 {
		outcome = "ungrounded"
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()

	sources := make([]domain.Chunk, len(chunks))
	for i, sc := range chunks {
		sources[i] = sc.Chunk
	}

	s.logger.Info("Answered query",
		zap.String("session_id", sessionID),
		zap.String("outcome", outcome),
		zap.Int("sources", len(sources)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return domain.Answer{
		SessionID: sessionID,
		Text:      result.Text,
		Sources:   sources,
	}, nil
}

// History returns the session's recorded turns, oldest first.
func (s *Service) History(sessionID string) ([]domain.Turn, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}
	return s.sessions.History(sessionID), nil
}

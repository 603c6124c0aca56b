// Package answer runs the full query pipeline: retrieve relevant chunks,
// assemble a grounded prompt with session history, generate an answer, and
// record the exchange in the session.
package answer

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// retriever is the consumer interface for chunk retrieval (ISP).
type retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// sessions is the consumer interface for session state (ISP).
type sessions interface {
	Lock(sessionID string)
	Unlock(sessionID string)
	History(sessionID string) []domain.Turn
	Append(sessionID string, turns ...domain.Turn)
}

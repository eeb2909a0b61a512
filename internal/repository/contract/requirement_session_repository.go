package contract

import (
	"context"
	"errors"
	"time"

	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ErrStaleSession is returned by UpdateIfUnmodified when another writer
// persisted the session since it was read.
var ErrStaleSession = errors.New("session modified concurrently")

type RequirementSessionRepository interface {
	Create(ctx context.Context, session *entity.RequirementSession) error
	Update(ctx context.Context, session *entity.RequirementSession) error
	// UpdateIfUnmodified persists the session only when its stored updated_at
	// still equals expectedUpdatedAt (optimistic compare-and-swap).
	UpdateIfUnmodified(ctx context.Context, session *entity.RequirementSession, expectedUpdatedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RequirementSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RequirementSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

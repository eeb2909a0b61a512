package unitofwork

import (
	"context"

	"ai-workflowgen-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	RequirementSessionRepository() contract.RequirementSessionRepository
	SystemLogRepository() contract.SystemLogRepository
}

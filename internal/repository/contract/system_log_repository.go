package contract

import (
	"context"

	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/repository/specification"
)

type SystemLogRepository interface {
	Create(ctx context.Context, log *entity.SystemLog) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SystemLog, error)
}

package implementation

import (
	"context"
	"errors"
	"time"

	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/mapper"
	"ai-workflowgen-be/internal/model"
	"ai-workflowgen-be/internal/repository/contract"
	"ai-workflowgen-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequirementSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewRequirementSessionRepository(db *gorm.DB) contract.RequirementSessionRepository {
	return &RequirementSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *RequirementSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RequirementSessionRepositoryImpl) Create(ctx context.Context, session *entity.RequirementSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *RequirementSessionRepositoryImpl) Update(ctx context.Context, session *entity.RequirementSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *RequirementSessionRepositoryImpl) UpdateIfUnmodified(ctx context.Context, session *entity.RequirementSession, expectedUpdatedAt time.Time) error {
	m := r.mapper.SessionToModel(session)
	m.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.RequirementSession{}).
		Where("id = ? AND updated_at = ?", m.Id, expectedUpdatedAt).
		Updates(map[string]interface{}{
			"status":      m.Status,
			"requirement": m.Requirement,
			"history":     m.History,
			"updated_at":  m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contract.ErrStaleSession
	}

	session.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *RequirementSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.RequirementSession{}, id).Error
}

func (r *RequirementSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RequirementSession, error) {
	var m model.RequirementSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *RequirementSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RequirementSession, error) {
	var models []*model.RequirementSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.RequirementSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SessionToEntity(m)
	}
	return entities, nil
}

func (r *RequirementSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.RequirementSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

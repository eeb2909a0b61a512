package mapper

import (
	"encoding/json"
	"time"

	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) SessionToEntity(s *model.RequirementSession) *entity.RequirementSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	requirement := map[string]interface{}{}
	if len(s.Requirement) > 0 {
		// Ignore unmarshal errors: a corrupt snapshot degrades to empty
		_ = json.Unmarshal(s.Requirement, &requirement)
	}

	var history []entity.HistoryMessage
	if len(s.History) > 0 {
		_ = json.Unmarshal(s.History, &history)
	}

	return &entity.RequirementSession{
		Id:          s.Id,
		TenantId:    s.TenantId,
		AppId:       s.AppId,
		UserId:      s.UserId,
		Status:      s.Status,
		Requirement: requirement,
		History:     history,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		DeletedAt:   deletedAt,
		IsDeleted:   s.DeletedAt.Valid,
	}
}

func (m *SessionMapper) SessionToModel(s *entity.RequirementSession) *model.RequirementSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	requirement := s.Requirement
	if requirement == nil {
		requirement = map[string]interface{}{}
	}
	requirementJSON, _ := json.Marshal(requirement)

	history := s.History
	if history == nil {
		history = []entity.HistoryMessage{}
	}
	historyJSON, _ := json.Marshal(history)

	return &model.RequirementSession{
		Id:          s.Id,
		TenantId:    s.TenantId,
		AppId:       s.AppId,
		UserId:      s.UserId,
		Status:      s.Status,
		Requirement: datatypes.JSON(requirementJSON),
		History:     datatypes.JSON(historyJSON),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		DeletedAt:   deletedAt,
	}
}

func (m *SessionMapper) SystemLogToModel(l *entity.SystemLog) *model.SystemLog {
	if l == nil {
		return nil
	}

	details := l.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, _ := json.Marshal(details)

	return &model.SystemLog{
		Id:        l.Id,
		Module:    l.Module,
		Action:    l.Action,
		Details:   datatypes.JSON(detailsJSON),
		CreatedAt: l.CreatedAt,
	}
}

func (m *SessionMapper) SystemLogToEntity(l *model.SystemLog) *entity.SystemLog {
	if l == nil {
		return nil
	}

	details := map[string]interface{}{}
	if len(l.Details) > 0 {
		_ = json.Unmarshal(l.Details, &details)
	}

	return &entity.SystemLog{
		Id:        l.Id,
		Module:    l.Module,
		Action:    l.Action,
		Details:   details,
		CreatedAt: l.CreatedAt,
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RequirementSession struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantId    uuid.UUID      `gorm:"type:uuid;not null;index:idx_requirement_sessions_scope"` // Tenant ownership for data isolation
	AppId       uuid.UUID      `gorm:"type:uuid;not null;index:idx_requirement_sessions_scope"`
	UserId      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Status      string         `gorm:"type:varchar(36);not null;default:'requirements'"`
	Requirement datatypes.JSON `gorm:"type:jsonb"`
	History     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (RequirementSession) TableName() string {
	return "requirement_sessions"
}

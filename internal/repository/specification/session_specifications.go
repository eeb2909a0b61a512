package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantScope confines a query to one (tenant, app) pair. Every session read
// must carry it so cross-tenant lookups fail closed.
type TenantScope struct {
	TenantID uuid.UUID
	AppID    uuid.UUID
}

func (s TenantScope) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("tenant_id = ? AND app_id = ?", s.TenantID, s.AppID)
}

type ByAppID struct {
	AppID uuid.UUID
}

func (s ByAppID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("app_id = ?", s.AppID)
}

type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

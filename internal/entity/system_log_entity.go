package entity

import (
	"time"

	"github.com/google/uuid"
)

// SystemLog is one audit record, e.g. a completed analysis turn.
type SystemLog struct {
	Id        uuid.UUID
	Module    string
	Action    string
	Details   map[string]interface{}
	CreatedAt time.Time
}

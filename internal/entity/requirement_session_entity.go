package entity

import (
	"time"

	"github.com/google/uuid"
)

// HistoryMessage is one role-tagged entry of a session's conversation history.
type HistoryMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// RequirementSession is the persisted state of one multi-turn requirement
// analysis conversation. Tenant, app and user ownership are immutable after
// creation; the requirement snapshot is overwritten wholesale every turn.
type RequirementSession struct {
	Id          uuid.UUID
	TenantId    uuid.UUID
	AppId       uuid.UUID
	UserId      uuid.UUID
	Status      string
	Requirement map[string]interface{}
	History     []HistoryMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}

// AppendTurn records one completed turn: the user input followed by the
// assistant payload.
func (s *RequirementSession) AppendTurn(userInput, assistantContent string) {
	s.History = append(s.History,
		HistoryMessage{Role: "user", Content: userInput},
		HistoryMessage{Role: "assistant", Content: assistantContent},
	)
}

package dto

import (
	"time"

	"github.com/google/uuid"
)

type AnalyzeRequirementRequest struct {
	Input     string     `json:"input" validate:"required"`
	SessionId *uuid.UUID `json:"session_id,omitempty"`
}

// AnalyzeStreamEvent is one SSE payload of an analysis turn: the agent event
// wrapped with the owning session's id and current status.
type AnalyzeStreamEvent struct {
	SessionId uuid.UUID   `json:"session_id"`
	Status    string      `json:"status"`
	Event     string      `json:"event"` // "content" | "tool_call" | "done" | "error"
	Data      interface{} `json:"data"`
}

type HistoryMessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SessionResponse struct {
	SessionId uuid.UUID              `json:"session_id"`
	Status    string                 `json:"status"`
	Data      map[string]interface{} `json:"data"`
	History   []HistoryMessageDTO    `json:"history,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type SessionSummaryResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AdvanceStatusResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TurnCompletedMessage is published on the in-process bus after a turn's
// state has been persisted, for the audit consumer.
type TurnCompletedMessage struct {
	SessionId uuid.UUID `json:"session_id"`
	TenantId  uuid.UUID `json:"tenant_id"`
	AppId     uuid.UUID `json:"app_id"`
	UserId    uuid.UUID `json:"user_id"`
	Status    string    `json:"status"`
	Complete  bool      `json:"complete"`
	InputLen  int       `json:"input_len"`
	OutputLen int       `json:"output_len"`
}

package mapper

import (
	"testing"
	"time"

	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestSessionMapperRoundTrip(t *testing.T) {
	m := NewSessionMapper()
	now := time.Now().Truncate(time.Second)

	src := &entity.RequirementSession{
		Id:       uuid.New(),
		TenantId: uuid.New(),
		AppId:    uuid.New(),
		UserId:   uuid.New(),
		Status:   "design",
		Requirement: map[string]interface{}{
			"complete": true,
			"intent":   "puzzle game",
		},
		History: []entity.HistoryMessage{
			{Role: "user", Content: "make a game"},
			{Role: "assistant", Content: "{\"complete\": true}"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	got := m.SessionToEntity(m.SessionToModel(src))
	require.NotNil(t, got)

	assert.Equal(t, src.Id, got.Id)
	assert.Equal(t, src.TenantId, got.TenantId)
	assert.Equal(t, src.Status, got.Status)
	assert.Equal(t, src.Requirement, got.Requirement)
	assert.Equal(t, src.History, got.History)
	assert.False(t, got.IsDeleted)
}

func TestSessionMapperCorruptSnapshotDegrades(t *testing.T) {
	m := NewSessionMapper()

	got := m.SessionToEntity(&model.RequirementSession{
		Id:          uuid.New(),
		Status:      "requirements",
		Requirement: datatypes.JSON([]byte(`{broken`)),
		History:     datatypes.JSON([]byte(`not json either`)),
	})

	require.NotNil(t, got)
	assert.Equal(t, map[string]interface{}{}, got.Requirement)
	assert.Empty(t, got.History)
}

func TestSessionMapperNil(t *testing.T) {
	m := NewSessionMapper()
	assert.Nil(t, m.SessionToEntity(nil))
	assert.Nil(t, m.SessionToModel(nil))
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-workflowgen-be/internal/constant"
	"ai-workflowgen-be/internal/dto"
	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/repository/contract"
	"ai-workflowgen-be/internal/repository/memory"
	"ai-workflowgen-be/internal/repository/specification"
	"ai-workflowgen-be/internal/repository/unitofwork"
	"ai-workflowgen-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- Fakes ----

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.RequirementSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*entity.RequirementSession)}
}

func copySession(s *entity.RequirementSession) *entity.RequirementSession {
	c := *s
	c.History = append([]entity.HistoryMessage(nil), s.History...)
	c.Requirement = make(map[string]interface{}, len(s.Requirement))
	for k, v := range s.Requirement {
		c.Requirement[k] = v
	}
	return &c
}

// matches replays the query specifications against an in-memory session.
func matches(s *entity.RequirementSession, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if s.Id != sp.ID {
				return false
			}
		case specification.TenantScope:
			if s.TenantId != sp.TenantID || s.AppId != sp.AppID {
				return false
			}
		case specification.UserOwnedBy:
			if s.UserId != sp.UserID {
				return false
			}
		case specification.ByStatus:
			if s.Status != sp.Status {
				return false
			}
		}
	}
	return true
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.RequirementSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Id] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, session *entity.RequirementSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Id] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) UpdateIfUnmodified(ctx context.Context, session *entity.RequirementSession, expectedUpdatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.Id]
	if !ok {
		return contract.ErrStaleSession
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return contract.ErrStaleSession
	}
	session.UpdatedAt = time.Now()
	r.sessions[session.Id] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RequirementSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if matches(s, specs) {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RequirementSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []*entity.RequirementSession
	for _, s := range r.sessions {
		if matches(s, specs) {
			found = append(found, copySession(s))
		}
	}
	return found, nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

type fakeSystemLogRepo struct {
	mu   sync.Mutex
	logs []*entity.SystemLog
}

func (r *fakeSystemLogRepo) Create(ctx context.Context, log *entity.SystemLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeSystemLogRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SystemLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.SystemLog(nil), r.logs...), nil
}

type fakeUnitOfWork struct {
	sessions *fakeSessionRepo
	logs     *fakeSystemLogRepo
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *fakeUnitOfWork) Commit() error                   { return nil }
func (u *fakeUnitOfWork) Rollback() error                 { return nil }
func (u *fakeUnitOfWork) RequirementSessionRepository() contract.RequirementSessionRepository {
	return u.sessions
}
func (u *fakeUnitOfWork) SystemLogRepository() contract.SystemLogRepository {
	return u.logs
}

type fakeUowFactory struct {
	uow *fakeUnitOfWork
}

func (f *fakeUowFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

// fakeLLMProvider streams a canned response and records the history it got.
type fakeLLMProvider struct {
	mu        sync.Mutex
	chunks    []llm.StreamChunk
	histories [][]llm.Message
	streamErr error
}

func (p *fakeLLMProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	full := ""
	for _, c := range p.chunks {
		full += c.ContentDelta
	}
	return full, nil
}

func (p *fakeLLMProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	p.mu.Lock()
	p.histories = append(p.histories, append([]llm.Message(nil), history...))
	p.mu.Unlock()

	out := make(chan llm.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (p *fakeLLMProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
}

type noopLogger struct{}

func (noopLogger) Debug(module, message string, details map[string]interface{}) {}
func (noopLogger) Info(module, message string, details map[string]interface{})  {}
func (noopLogger) Warn(module, message string, details map[string]interface{})  {}
func (noopLogger) Error(module, message string, details map[string]interface{}) {}
func (noopLogger) Sync() error                                                  { return nil }

// ---- Helpers ----

type testEnv struct {
	service  IRequirementService
	sessions *fakeSessionRepo
	logs     *fakeSystemLogRepo
	provider *fakeLLMProvider
}

func newTestEnv(t *testing.T, provider *fakeLLMProvider) *testEnv {
	t.Helper()
	sessions := newFakeSessionRepo()
	logs := &fakeSystemLogRepo{}
	factory := &fakeUowFactory{uow: &fakeUnitOfWork{sessions: sessions, logs: logs}}

	svc := NewRequirementService(
		factory,
		provider,
		memory.NewTurnLockRepository(),
		nil, // audit bus not exercised here
		nil, // NATS optional
		nil, // websocket hub optional
		noopLogger{},
		20,
	)

	return &testEnv{service: svc, sessions: sessions, logs: logs, provider: provider}
}

func drainEvents(t *testing.T, ch <-chan dto.AnalyzeStreamEvent) []dto.AnalyzeStreamEvent {
	t.Helper()
	var events []dto.AnalyzeStreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out draining analyze events")
		}
	}
}

func jsonProvider(payload string) *fakeLLMProvider {
	return &fakeLLMProvider{chunks: []llm.StreamChunk{
		{ContentDelta: "Here is the result:\n"},
		{ContentDelta: "```json\n" + payload + "\n```"},
	}}
}

// ---- Tests ----

func TestAnalyzeCreatesSessionAndPersistsTurn(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{"complete": false, "clarification_questions": ["how many players?"]}`))
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	sessionId, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{
		Input: "a tile matching game",
	})
	require.NoError(t, err)
	collected := drainEvents(t, events)

	require.NotEmpty(t, collected)
	last := collected[len(collected)-1]
	assert.Equal(t, "done", last.Event)

	result, ok := last.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, result["complete"])

	stored, err := env.sessions.FindOne(context.Background(), specification.ByID{ID: sessionId})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, constant.SessionStatusRequirements, stored.Status)
	assert.Equal(t, result, stored.Requirement)

	// One turn appends exactly [user, assistant]
	require.Len(t, stored.History, 2)
	assert.Equal(t, constant.MessageRoleUser, stored.History[0].Role)
	assert.Equal(t, "a tile matching game", stored.History[0].Content)
	assert.Equal(t, constant.MessageRoleAssistant, stored.History[1].Role)
}

func TestAnalyzeSecondTurnReplaysHistory(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{"complete": true}`))
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	sessionId, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "turn one"})
	require.NoError(t, err)
	drainEvents(t, events)

	_, events, err = env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{
		Input:     "turn two",
		SessionId: &sessionId,
	})
	require.NoError(t, err)
	drainEvents(t, events)

	// Second call must see the first turn's pair replayed as history.
	require.Len(t, env.provider.histories, 2)
	second := env.provider.histories[1]
	var roles []string
	for _, m := range second {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "turn one", second[1].Content)

	stored, _ := env.sessions.FindOne(context.Background(), specification.ByID{ID: sessionId})
	require.Len(t, stored.History, 4)
	assert.Equal(t, "turn two", stored.History[2].Content)
}

func TestAnalyzeSnapshotOverwrittenWholesale(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{"complete": false, "keep": "old"}`))
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	sessionId, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "one"})
	require.NoError(t, err)
	drainEvents(t, events)

	env.provider.chunks = []llm.StreamChunk{{ContentDelta: "```json\n{\"complete\": true}\n```"}}

	_, events, err = env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "two", SessionId: &sessionId})
	require.NoError(t, err)
	drainEvents(t, events)

	stored, _ := env.sessions.FindOne(context.Background(), specification.ByID{ID: sessionId})
	assert.Equal(t, map[string]interface{}{"complete": true}, stored.Requirement, "no merging with the previous snapshot")
}

func TestAnalyzeCrossTenantLookupFailsClosed(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{}`))
	tenantA, appId, userId := uuid.New(), uuid.New(), uuid.New()

	sessionId, events, err := env.service.Analyze(context.Background(), tenantA, appId, userId, &dto.AnalyzeRequirementRequest{Input: "mine"})
	require.NoError(t, err)
	drainEvents(t, events)

	otherTenant := uuid.New()
	_, _, err = env.service.Analyze(context.Background(), otherTenant, appId, userId, &dto.AnalyzeRequirementRequest{
		Input:     "theirs",
		SessionId: &sessionId,
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = env.service.GetSession(context.Background(), otherTenant, appId, sessionId)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAnalyzeFailedTurnMutatesNothing(t *testing.T) {
	env := newTestEnv(t, &fakeLLMProvider{chunks: []llm.StreamChunk{
		{ContentDelta: "partial"},
		{Err: errors.New("model unavailable")},
	}})
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	sessionId, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "doomed"})
	require.NoError(t, err)
	collected := drainEvents(t, events)

	last := collected[len(collected)-1]
	assert.Equal(t, "error", last.Event)

	stored, _ := env.sessions.FindOne(context.Background(), specification.ByID{ID: sessionId})
	require.NotNil(t, stored)
	assert.Empty(t, stored.History, "failed turn must not touch history")
	assert.Empty(t, stored.Requirement)
}

func TestAnalyzeStaleSessionEndsTurnWithError(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{"complete": false}`))
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	// Leave the event channel undrained so the turn has not persisted yet.
	sessionId, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "slow turn"})
	require.NoError(t, err)

	// Another writer touches the session before the turn writes back, so the
	// optimistic updated_at check must miss.
	env.sessions.mu.Lock()
	env.sessions.sessions[sessionId].UpdatedAt = env.sessions.sessions[sessionId].UpdatedAt.Add(time.Second)
	env.sessions.mu.Unlock()

	collected := drainEvents(t, events)
	require.NotEmpty(t, collected)
	last := collected[len(collected)-1]
	assert.Equal(t, "error", last.Event)
	assert.Equal(t, "failed to persist turn", last.Data)

	stored, _ := env.sessions.FindOne(context.Background(), specification.ByID{ID: sessionId})
	require.NotNil(t, stored)
	assert.Empty(t, stored.History, "a turn that lost the write race must not land")
	assert.Empty(t, stored.Requirement)

	// The session stays usable once the conflicting write settled.
	_, events, err = env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{
		Input:     "retry",
		SessionId: &sessionId,
	})
	require.NoError(t, err)
	collected = drainEvents(t, events)
	assert.Equal(t, "done", collected[len(collected)-1].Event)
}

func TestAdvanceStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{name: "forward step", from: constant.SessionStatusRequirements, to: constant.SessionStatusDesign},
		{name: "one step rollback", from: constant.SessionStatusDesign, to: constant.SessionStatusRequirements},
		{name: "skip ahead rejected", from: constant.SessionStatusRequirements, to: constant.SessionStatusWorkflow, wantErr: ErrInvalidTransition},
		{name: "self transition rejected", from: constant.SessionStatusDesign, to: constant.SessionStatusDesign, wantErr: ErrInvalidTransition},
		{name: "unknown status rejected", from: constant.SessionStatusDesign, to: "shipping", wantErr: ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, jsonProvider(`{}`))
			tenantId, appId := uuid.New(), uuid.New()

			session := &entity.RequirementSession{
				Id:        uuid.New(),
				TenantId:  tenantId,
				AppId:     appId,
				UserId:    uuid.New(),
				Status:    tt.from,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			require.NoError(t, env.sessions.Create(context.Background(), session))

			res, err := env.service.AdvanceStatus(context.Background(), tenantId, appId, session.Id, &dto.AdvanceStatusRequest{Status: tt.to})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				stored, _ := env.sessions.FindOne(context.Background(), specification.ByID{ID: session.Id})
				assert.Equal(t, tt.from, stored.Status, "rejected transition must not change status")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, res.Status)

			stored, _ := env.sessions.FindOne(context.Background(), specification.ByID{ID: session.Id})
			assert.Equal(t, tt.to, stored.Status)
			// The write-back stamps updated_at; the response carries it.
			assert.True(t, res.UpdatedAt.After(session.CreatedAt))
			assert.True(t, stored.UpdatedAt.Equal(res.UpdatedAt))
		})
	}
}

func TestAnalyzeRejectsConcurrentTurn(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{}`))
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	// First turn: leave the event channel undrained so the turn stays open.
	sessionId, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "one"})
	require.NoError(t, err)

	_, _, err = env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{
		Input:     "racing",
		SessionId: &sessionId,
	})
	assert.ErrorIs(t, err, ErrTurnInProgress)

	drainEvents(t, events)

	// Once the first turn finished, the session accepts turns again.
	_, events, err = env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{
		Input:     "after",
		SessionId: &sessionId,
	})
	require.NoError(t, err)
	drainEvents(t, events)
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{}`))
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	sessionId, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "temp"})
	require.NoError(t, err)
	drainEvents(t, events)

	require.NoError(t, env.service.DeleteSession(context.Background(), tenantId, appId, sessionId))

	_, err = env.service.GetSession(context.Background(), tenantId, appId, sessionId)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = env.service.DeleteSession(context.Background(), tenantId, appId, sessionId)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetSessionsByApp(t *testing.T) {
	env := newTestEnv(t, jsonProvider(`{}`))
	tenantId, appId, userId := uuid.New(), uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		_, events, err := env.service.Analyze(context.Background(), tenantId, appId, userId, &dto.AnalyzeRequirementRequest{Input: "turn"})
		require.NoError(t, err)
		drainEvents(t, events)
	}

	// A different app in the same tenant stays invisible.
	_, events, err := env.service.Analyze(context.Background(), tenantId, uuid.New(), userId, &dto.AnalyzeRequirementRequest{Input: "other app"})
	require.NoError(t, err)
	drainEvents(t, events)

	list, err := env.service.GetSessionsByApp(context.Background(), tenantId, appId)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ai-workflowgen-be/internal/constant"
	"ai-workflowgen-be/internal/dto"
	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/pkg/logger"
	"ai-workflowgen-be/internal/repository/memory"
	"ai-workflowgen-be/internal/repository/specification"
	"ai-workflowgen-be/internal/repository/unitofwork"
	"ai-workflowgen-be/internal/websocket"
	"ai-workflowgen-be/pkg/events"
	"ai-workflowgen-be/pkg/llm"
	pktNats "ai-workflowgen-be/pkg/nats"
	"ai-workflowgen-be/pkg/workflow/agent"

	"github.com/google/uuid"
)

// IRequirementService orchestrates multi-turn requirement analysis sessions.
type IRequirementService interface {
	Analyze(ctx context.Context, tenantId, appId, userId uuid.UUID, request *dto.AnalyzeRequirementRequest) (uuid.UUID, <-chan dto.AnalyzeStreamEvent, error)
	GetSession(ctx context.Context, tenantId, appId, sessionId uuid.UUID) (*dto.SessionResponse, error)
	GetSessionsByApp(ctx context.Context, tenantId, appId uuid.UUID) ([]*dto.SessionSummaryResponse, error)
	AdvanceStatus(ctx context.Context, tenantId, appId, sessionId uuid.UUID, request *dto.AdvanceStatusRequest) (*dto.AdvanceStatusResponse, error)
	DeleteSession(ctx context.Context, tenantId, appId, sessionId uuid.UUID) error
}

// requirementService coordinates session persistence, per-status agents and
// the event fanout (watermill audit bus, NATS lifecycle events, websocket
// status hub).
type requirementService struct {
	uowFactory       unitofwork.RepositoryFactory
	agents           map[string]*agent.Agent
	turnLocks        *memory.TurnLockRepository
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	wsHub            *websocket.Hub
	sysLogger        logger.ILogger
	historyWindow    int
	llmLogger        *log.Logger
}

func NewRequirementService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	turnLocks *memory.TurnLockRepository,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	wsHub *websocket.Hub,
	sysLogger logger.ILogger,
	historyWindow int,
) IRequirementService {

	llmLogger := initLLMLogger()

	// One agent per pipeline stage. The session's status selects which one
	// handles the next turn.
	agents := map[string]*agent.Agent{
		constant.SessionStatusRequirements: agent.New(agent.UnderstandingProfile(), llmProvider, llmLogger),
		constant.SessionStatusDesign:       agent.New(agent.ClarificationProfile(), llmProvider, llmLogger),
		constant.SessionStatusFeatures:     agent.New(agent.BreakdownProfile(), llmProvider, llmLogger),
		constant.SessionStatusWorkflow:     agent.New(agent.DetailingProfile(), llmProvider, llmLogger),
	}

	if historyWindow <= 0 {
		historyWindow = 20
	}

	return &requirementService{
		uowFactory:       uowFactory,
		agents:           agents,
		turnLocks:        turnLocks,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		wsHub:            wsHub,
		sysLogger:        sysLogger,
		historyWindow:    historyWindow,
		llmLogger:        llmLogger,
	}
}

func initLLMLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "llm_turns.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[LLM-TURN] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// Analyze runs one streamed analysis turn. When request.SessionId is nil a
// fresh session is created first; otherwise the session is loaded within the
// caller's tenant scope. The returned channel yields content/tool_call events
// in model order, then exactly one done or error event. Persistence happens
// once, before the done event is forwarded, so a received done implies the
// turn is durable.
func (rs *requirementService) Analyze(ctx context.Context, tenantId, appId, userId uuid.UUID, request *dto.AnalyzeRequirementRequest) (uuid.UUID, <-chan dto.AnalyzeStreamEvent, error) {
	session, err := rs.getOrCreateSession(ctx, tenantId, appId, userId, request.SessionId)
	if err != nil {
		return uuid.Nil, nil, err
	}

	// Serialize turns per session: a second analyze on a busy session is
	// rejected instead of queueing behind a potentially long stream.
	releaseLock, ok := rs.turnLocks.TryAcquire(session.Id.String())
	if !ok {
		return uuid.Nil, nil, ErrTurnInProgress
	}

	turnAgent, ok := rs.agents[session.Status]
	if !ok {
		releaseLock()
		return uuid.Nil, nil, ErrUnknownStatus
	}

	history := rs.historyMessages(session)
	agentEvents, err := turnAgent.Run(ctx, request.Input, history)
	if err != nil {
		releaseLock()
		return uuid.Nil, nil, err
	}

	out := make(chan dto.AnalyzeStreamEvent)

	go func() {
		defer close(out)
		defer releaseLock()

		expectedUpdatedAt := session.UpdatedAt
		var assistant strings.Builder

		for ev := range agentEvents {
			switch ev.Type {
			case agent.EventContent:
				assistant.WriteString(ev.Content)
				out <- dto.AnalyzeStreamEvent{SessionId: session.Id, Status: session.Status, Event: string(ev.Type), Data: ev.Content}

			case agent.EventToolCall:
				out <- dto.AnalyzeStreamEvent{SessionId: session.Id, Status: session.Status, Event: string(ev.Type), Data: ev.ToolCall}

			case agent.EventDone:
				result := ev.Result
				if result == nil {
					result = map[string]interface{}{}
				}
				if err := rs.persistTurn(ctx, session, expectedUpdatedAt, request.Input, assistant.String(), result); err != nil {
					rs.sysLogger.Error("RequirementService", "Failed to persist turn", map[string]interface{}{
						"session_id": session.Id,
						"error":      err.Error(),
					})
					out <- dto.AnalyzeStreamEvent{SessionId: session.Id, Status: session.Status, Event: string(agent.EventError), Data: "failed to persist turn"}
					return
				}
				rs.afterTurn(ctx, session, request.Input, assistant.String(), result)
				out <- dto.AnalyzeStreamEvent{SessionId: session.Id, Status: session.Status, Event: string(ev.Type), Data: result}

			case agent.EventError:
				// A failed turn mutates nothing; the session stays as it was
				// before the turn started.
				rs.sysLogger.Warn("RequirementService", "Turn failed", map[string]interface{}{
					"session_id": session.Id,
					"error":      ev.Err,
				})
				out <- dto.AnalyzeStreamEvent{SessionId: session.Id, Status: session.Status, Event: string(ev.Type), Data: ev.Err}
			}
		}
	}()

	return session.Id, out, nil
}

// getOrCreateSession loads an existing session within the tenant scope or
// creates a fresh one at the first pipeline stage.
func (rs *requirementService) getOrCreateSession(ctx context.Context, tenantId, appId, userId uuid.UUID, sessionId *uuid.UUID) (*entity.RequirementSession, error) {
	uow := rs.uowFactory.NewUnitOfWork(ctx)

	if sessionId != nil {
		session, err := uow.RequirementSessionRepository().FindOne(ctx,
			specification.ByID{ID: *sessionId},
			specification.TenantScope{TenantID: tenantId, AppID: appId},
		)
		if err != nil {
			return nil, err
		}
		if session == nil {
			// A session owned by another tenant looks exactly like a missing one.
			return nil, ErrSessionNotFound
		}
		return session, nil
	}

	now := time.Now()
	session := &entity.RequirementSession{
		Id:          uuid.New(),
		TenantId:    tenantId,
		AppId:       appId,
		UserId:      userId,
		Status:      constant.SessionStatusRequirements,
		Requirement: map[string]interface{}{},
		History:     []entity.HistoryMessage{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.RequirementSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if rs.eventPublisher != nil {
		evt := events.NewSessionEvent(events.SessionCreated, session.Id.String(), tenantId.String(), appId.String(), map[string]interface{}{
			"user_id": userId.String(),
			"status":  session.Status,
		})
		if err := rs.eventPublisher.Publish(ctx, evt); err != nil {
			rs.sysLogger.Warn("RequirementService", "Failed to publish SESSION_CREATED", map[string]interface{}{"error": err.Error()})
		}
	}

	return session, nil
}

// historyMessages replays the persisted conversation as chat messages,
// trimmed to the most recent window so prompts stay bounded.
func (rs *requirementService) historyMessages(session *entity.RequirementSession) []llm.Message {
	history := session.History
	if len(history) > rs.historyWindow {
		history = history[len(history)-rs.historyWindow:]
	}

	messages := make([]llm.Message, 0, len(history))
	for _, h := range history {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	return messages
}

// persistTurn appends the turn to the history, overwrites the requirement
// snapshot wholesale and writes the session back with an optimistic check on
// updated_at. The repository owns the new updated_at stamp.
func (rs *requirementService) persistTurn(ctx context.Context, session *entity.RequirementSession, expectedUpdatedAt time.Time, input, assistantContent string, result map[string]interface{}) error {
	session.AppendTurn(input, assistantContent)
	session.Requirement = result

	uow := rs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.RequirementSessionRepository().UpdateIfUnmodified(ctx, session, expectedUpdatedAt); err != nil {
		return err
	}

	return uow.Commit()
}

// afterTurn publishes the audit message and notifies websocket watchers.
// Both are best-effort: the turn is already durable.
func (rs *requirementService) afterTurn(ctx context.Context, session *entity.RequirementSession, input, assistantContent string, result map[string]interface{}) {
	if rs.publisherService != nil {
		complete, _ := result["complete"].(bool)
		payload := dto.TurnCompletedMessage{
			SessionId: session.Id,
			TenantId:  session.TenantId,
			AppId:     session.AppId,
			UserId:    session.UserId,
			Status:    session.Status,
			Complete:  complete,
			InputLen:  len(input),
			OutputLen: len(assistantContent),
		}
		payloadJson, _ := json.Marshal(payload)
		if err := rs.publisherService.Publish(ctx, payloadJson); err != nil {
			rs.sysLogger.Warn("RequirementService", "Failed to publish turn audit message", map[string]interface{}{"error": err.Error()})
		}
	}

	if rs.wsHub != nil {
		rs.wsHub.Notify(websocket.StatusUpdate{
			SessionID: session.Id,
			Status:    session.Status,
			Event:     "turn_completed",
		})
	}
}

func (rs *requirementService) GetSession(ctx context.Context, tenantId, appId, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	uow := rs.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.RequirementSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.TenantScope{TenantID: tenantId, AppID: appId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	history := make([]dto.HistoryMessageDTO, 0, len(session.History))
	for _, h := range session.History {
		history = append(history, dto.HistoryMessageDTO{Role: h.Role, Content: h.Content})
	}

	return &dto.SessionResponse{
		SessionId: session.Id,
		Status:    session.Status,
		Data:      session.Requirement,
		History:   history,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}, nil
}

func (rs *requirementService) GetSessionsByApp(ctx context.Context, tenantId, appId uuid.UUID) ([]*dto.SessionSummaryResponse, error) {
	uow := rs.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.RequirementSessionRepository().FindAll(ctx,
		specification.TenantScope{TenantID: tenantId, AppID: appId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.SessionSummaryResponse, 0, len(sessions))
	for _, s := range sessions {
		response = append(response, &dto.SessionSummaryResponse{
			SessionId: s.Id,
			Status:    s.Status,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}

	return response, nil
}

// AdvanceStatus moves a session along the pipeline. Only transitions listed
// in the transition table are allowed.
func (rs *requirementService) AdvanceStatus(ctx context.Context, tenantId, appId, sessionId uuid.UUID, request *dto.AdvanceStatusRequest) (*dto.AdvanceStatusResponse, error) {
	if !constant.IsKnownStatus(request.Status) {
		return nil, ErrUnknownStatus
	}

	uow := rs.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.RequirementSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.TenantScope{TenantID: tenantId, AppID: appId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if !constant.IsValidStatusTransition(session.Status, request.Status) {
		return nil, ErrInvalidTransition
	}

	expectedUpdatedAt := session.UpdatedAt
	previousStatus := session.Status
	session.Status = request.Status

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.RequirementSessionRepository().UpdateIfUnmodified(ctx, session, expectedUpdatedAt); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if rs.eventPublisher != nil {
		evt := events.NewSessionEvent(events.SessionStatusAdvanced, session.Id.String(), tenantId.String(), appId.String(), map[string]interface{}{
			"from": previousStatus,
			"to":   session.Status,
		})
		if err := rs.eventPublisher.Publish(ctx, evt); err != nil {
			rs.sysLogger.Warn("RequirementService", "Failed to publish SESSION_STATUS_ADVANCED", map[string]interface{}{"error": err.Error()})
		}
	}

	if rs.wsHub != nil {
		rs.wsHub.Notify(websocket.StatusUpdate{
			SessionID: session.Id,
			Status:    session.Status,
			Event:     "status_advanced",
		})
	}

	return &dto.AdvanceStatusResponse{
		SessionId: session.Id,
		Status:    session.Status,
		UpdatedAt: session.UpdatedAt,
	}, nil
}

func (rs *requirementService) DeleteSession(ctx context.Context, tenantId, appId, sessionId uuid.UUID) error {
	uow := rs.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.RequirementSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.TenantScope{TenantID: tenantId, AppID: appId},
	)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.RequirementSessionRepository().Delete(ctx, session.Id); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	rs.turnLocks.Release(session.Id.String())

	if rs.eventPublisher != nil {
		evt := events.NewSessionEvent(events.SessionDeleted, session.Id.String(), tenantId.String(), appId.String(), nil)
		if err := rs.eventPublisher.Publish(ctx, evt); err != nil {
			rs.sysLogger.Warn("RequirementService", "Failed to publish SESSION_DELETED", map[string]interface{}{"error": err.Error()})
		}
	}

	if rs.wsHub != nil {
		rs.wsHub.Notify(websocket.StatusUpdate{
			SessionID: session.Id,
			Status:    session.Status,
			Event:     "session_deleted",
		})
	}

	return nil
}

package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ai-workflowgen-be/internal/dto"
	"ai-workflowgen-be/internal/entity"
	"ai-workflowgen-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IAuditConsumerService interface {
	Consume(ctx context.Context) error
}

// auditConsumerService drains completed-turn messages off the in-process bus
// and writes one audit row per turn.
type auditConsumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
}

func NewAuditConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
) IAuditConsumerService {
	return &auditConsumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
	}
}

func (cs *auditConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *auditConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TurnCompletedMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal turn audit message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	auditLog := &entity.SystemLog{
		Id:     uuid.New(),
		Module: "RequirementService",
		Action: "TURN_COMPLETED",
		Details: map[string]interface{}{
			"session_id": payload.SessionId.String(),
			"tenant_id":  payload.TenantId.String(),
			"app_id":     payload.AppId.String(),
			"user_id":    payload.UserId.String(),
			"status":     payload.Status,
			"complete":   payload.Complete,
			"input_len":  payload.InputLen,
			"output_len": payload.OutputLen,
		},
		CreatedAt: time.Now(),
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	if err := uow.SystemLogRepository().Create(ctx, auditLog); err != nil {
		log.Printf("[ERROR] Failed to write turn audit log: %v", err)
		msg.Nack()
		return
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	msg.Ack()
}

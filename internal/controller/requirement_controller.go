package controller

import (
	"bufio"
	"os"

	"ai-workflowgen-be/internal/dto"
	"ai-workflowgen-be/internal/pkg/logger"
	"ai-workflowgen-be/internal/pkg/serverutils"
	"ai-workflowgen-be/internal/service"
	internalWS "ai-workflowgen-be/internal/websocket"
	"ai-workflowgen-be/pkg/sse"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IRequirementController interface {
	RegisterRoutes(r fiber.Router)
	Analyze(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	GetSessions(ctx *fiber.Ctx) error
	AdvanceStatus(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	WatchSession(ctx *fiber.Ctx) error
}

type requirementController struct {
	service service.IRequirementService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewRequirementController(service service.IRequirementService, hub *internalWS.Hub, log logger.ILogger) IRequirementController {
	return &requirementController{service: service, hub: hub, logger: log}
}

func (c *requirementController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/apps/:app_id/requirements/v1")
	h.Use(serverutils.JwtMiddleware) // ✅ PROTECTED
	h.Post("/analyze", c.Analyze)
	h.Get("/sessions", c.GetSessions)
	h.Get("/sessions/:session_id", c.GetSession)
	h.Put("/sessions/:session_id/status", c.AdvanceStatus)
	h.Delete("/sessions/:session_id", c.DeleteSession)

	// WebSocket watchers authenticate in the handshake, not via middleware
	r.Get("/apps/:app_id/requirements/v1/sessions/:session_id/watch", c.WatchSession)
}

// Analyze runs one analysis turn and streams it back as Server-Sent Events.
// The stream always ends with the [DONE] sentinel, success or failure.
func (c *requirementController) Analyze(ctx *fiber.Ctx) error {
	tenantId, userId, err := callerScope(ctx)
	if err != nil {
		return err
	}
	appId, err := uuid.Parse(ctx.Params("app_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid app id")
	}

	var req dto.AnalyzeRequirementRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// Open the turn before hijacking the response so lookup and lock errors
	// still map onto proper HTTP statuses.
	sessionId, events, err := c.service.Analyze(ctx.UserContext(), tenantId, appId, userId, &req)
	if err != nil {
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		writer := sse.NewWriter(w)

		for ev := range events {
			if err := writer.Send(ev); err != nil {
				// Client went away; drain the channel so the turn still
				// persists, then stop.
				c.logger.Warn("RequirementController", "SSE client disconnected mid-turn", map[string]interface{}{
					"session_id": sessionId,
					"error":      err.Error(),
				})
				for range events {
				}
				return
			}
		}

		if err := writer.SendDone(); err != nil {
			c.logger.Warn("RequirementController", "Failed to send SSE done sentinel", map[string]interface{}{
				"session_id": sessionId,
			})
		}
	}))

	return nil
}

func (c *requirementController) GetSession(ctx *fiber.Ctx) error {
	tenantId, _, err := callerScope(ctx)
	if err != nil {
		return err
	}
	appId, err := uuid.Parse(ctx.Params("app_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid app id")
	}
	sessionId, err := uuid.Parse(ctx.Params("session_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.service.GetSession(ctx.UserContext(), tenantId, appId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *requirementController) GetSessions(ctx *fiber.Ctx) error {
	tenantId, _, err := callerScope(ctx)
	if err != nil {
		return err
	}
	appId, err := uuid.Parse(ctx.Params("app_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid app id")
	}

	res, err := c.service.GetSessionsByApp(ctx.UserContext(), tenantId, appId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", res))
}

func (c *requirementController) AdvanceStatus(ctx *fiber.Ctx) error {
	tenantId, _, err := callerScope(ctx)
	if err != nil {
		return err
	}
	appId, err := uuid.Parse(ctx.Params("app_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid app id")
	}
	sessionId, err := uuid.Parse(ctx.Params("session_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	var req dto.AdvanceStatusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AdvanceStatus(ctx.UserContext(), tenantId, appId, sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success advance session status", res))
}

func (c *requirementController) DeleteSession(ctx *fiber.Ctx) error {
	tenantId, _, err := callerScope(ctx)
	if err != nil {
		return err
	}
	appId, err := uuid.Parse(ctx.Params("app_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid app id")
	}
	sessionId, err := uuid.Parse(ctx.Params("session_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	if err := c.service.DeleteSession(ctx.UserContext(), tenantId, appId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

// WatchSession upgrades to a websocket that receives status updates for one
// session. The token travels as a query param because browsers cannot set
// headers on websocket handshakes.
func (c *requirementController) WatchSession(ctx *fiber.Ctx) error {
	tokenStr := ctx.Query("token")
	if tokenStr == "" {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		c.logger.Warn("RequirementController", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	tenantIdStr, ok := claims["tenant_id"].(string)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing tenant_id"})
	}
	tenantId, err := uuid.Parse(tenantIdStr)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid tenant ID format in token"})
	}

	appId, err := uuid.Parse(ctx.Params("app_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid app id")
	}
	sessionId, err := uuid.Parse(ctx.Params("session_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	// Verify the session exists within the caller's scope before upgrading.
	if _, err := c.service.GetSession(ctx.UserContext(), tenantId, appId, sessionId); err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("RequirementController", "Starting session watch", map[string]interface{}{"session_id": sessionId})
			internalWS.ServeWs(c.hub, conn, sessionId)
			c.logger.Info("RequirementController", "Session watch ended", map[string]interface{}{"session_id": sessionId})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}

// callerScope pulls the authenticated tenant and user out of the request
// locals set by the JWT middleware.
func callerScope(ctx *fiber.Ctx) (tenantId uuid.UUID, userId uuid.UUID, err error) {
	tenantIdStr, ok := ctx.Locals("tenant_id").(string)
	if !ok {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "missing tenant claim")
	}
	tenantId, err = uuid.Parse(tenantIdStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid tenant id")
	}

	userIdStr, ok := ctx.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "missing user claim")
	}
	userId, err = uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid user id")
	}

	return tenantId, userId, nil
}

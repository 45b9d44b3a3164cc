package conveyorHandler

import (
	conveyorService "ConveyorVision/internal/api/conveyor/service"
	"ConveyorVision/internal/middleware"
	"ConveyorVision/pkg/handlerUtil"
	"ConveyorVision/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type ConveyorHandler struct {
	log             *logrus.Logger
	validator       *validator.Validate
	middleware      middleware.Middleware
	conveyorService conveyorService.IConveyorService
	utils           utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	cs conveyorService.IConveyorService,
	utils utils.IUtils,
) *ConveyorHandler {
	return &ConveyorHandler{
		log:             log,
		validator:       validator,
		middleware:      middleware,
		conveyorService: cs,
		utils:           utils,
	}
}

func (h *ConveyorHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	belt := srv.Group("/belt/:camera_id", h.validateCamera)

	// Frame uploads are rate limited per client
	belt.Post("/analyze", h.middleware.NewRateLimiter, h.Analyze)
	belt.Post("/visualize", h.middleware.NewRateLimiter, h.Visualize)
	belt.Post("/baseline", h.middleware.NewRateLimiter, h.CaptureBaseline)

	belt.Post("/reset", h.Reset)
	belt.Put("/config", h.UpdateConfig)
	belt.Get("/status", h.Status)
	belt.Get("/alerts", h.RecentAlerts)

	belt.Use("/ws", wsMiddleware)
	belt.Get("/ws", websocket.New(h.handleStream))
}

func (h *ConveyorHandler) validateCamera(ctx *fiber.Ctx) error {
	if err := h.validator.Var(ctx.Params("camera_id"), "required,max=64,printascii,excludesall=/?#"); err != nil {
		errHandler := handlerUtil.New(h.log)
		return errHandler.HandleValidationError(ctx, h.middleware.GetRequestID(ctx), err, ctx.Path())
	}
	return ctx.Next()
}

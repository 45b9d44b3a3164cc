package conveyorHandler

import (
	"ConveyorVision/internal/api/conveyor"
	contextPkg "ConveyorVision/pkg/context"
	"ConveyorVision/pkg/handlerUtil"
	"ConveyorVision/pkg/log"
	"ConveyorVision/pkg/utils"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

const CapturedAtHeader = "X-Captured-At"

// readFrame accepts either a multipart upload in the "image" field or a raw
// image body.
func (h *ConveyorHandler) readFrame(ctx *fiber.Ctx) ([]byte, error) {
	if file, err := ctx.FormFile("image"); err == nil {
		return h.utils.ReadImageFile(file)
	}

	if strings.HasPrefix(string(ctx.Request().Header.ContentType()), "image/") {
		body := ctx.Body()
		if len(body) == 0 {
			return nil, utils.ErrNoFile
		}
		if int64(len(body)) > h.utils.MaxFileSize() {
			return nil, utils.ErrFileTooLarge
		}
		return append([]byte(nil), body...), nil
	}

	return nil, utils.ErrNoFile
}

// capturedAt reads the camera timestamp from the X-Captured-At header or the
// captured_at form field. Frames without one are stamped on arrival.
func capturedAt(ctx *fiber.Ctx) time.Time {
	raw := ctx.Get(CapturedAtHeader)
	if raw == "" {
		raw = ctx.FormValue("captured_at")
	}
	if raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
	}
	return time.Now()
}

func (h *ConveyorHandler) Analyze(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	cameraID := ctx.Params("camera_id")

	frame, err := h.readFrame(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_frame")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"camera_id":  cameraID,
		"frame_size": len(frame),
	}).Debug("Processing belt frame")

	result, err := h.conveyorService.Analyze(c, cameraID, frame, capturedAt(ctx))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_frame")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *ConveyorHandler) Visualize(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	frame, err := h.readFrame(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_frame")
	}

	annotated, err := h.conveyorService.Visualize(c, ctx.Params("camera_id"), frame, capturedAt(ctx))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "visualize_frame")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		ctx.Set(fiber.HeaderContentType, "image/jpeg")
		return ctx.Status(fiber.StatusOK).Send(annotated)
	}
}

func (h *ConveyorHandler) CaptureBaseline(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	cameraID := ctx.Params("camera_id")

	frame, err := h.readFrame(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_frame")
	}

	baseline, err := h.conveyorService.CaptureBaseline(c, cameraID, frame)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "capture_baseline")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"camera_id":  cameraID,
			"mean":       baseline.Baseline.Mean,
		}).Info("Texture baseline captured")
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, baseline)
	}
}

func (h *ConveyorHandler) Reset(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	cameraID := ctx.Params("camera_id")

	if err := h.conveyorService.Reset(c, cameraID); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "reset_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, conveyor.ResetResponse{
		CameraID: cameraID,
		Message:  "Speed history and tear tracking cleared",
	})
}

func (h *ConveyorHandler) UpdateConfig(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	cameraID := ctx.Params("camera_id")

	// Fields missing from the body keep the camera's current values
	cfg := h.conveyorService.Config(cameraID)
	if err := ctx.BodyParser(&cfg); err != nil {
		return errHandler.Handle(ctx, requestID, conveyor.ErrBadRequest, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(cfg); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	status, err := h.conveyorService.UpdateConfig(c, cameraID, cfg)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "update_config")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
	}
}

func (h *ConveyorHandler) Status(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	status, err := h.conveyorService.Status(c, ctx.Params("camera_id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_status")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
}

func (h *ConveyorHandler) RecentAlerts(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req conveyor.AlertListRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, conveyor.ErrBadRequest, ctx.Path(), "parse_query")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	alerts, err := h.conveyorService.RecentAlerts(c, ctx.Params("camera_id"), req.Limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "recent_alerts")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, alerts)
	}
}

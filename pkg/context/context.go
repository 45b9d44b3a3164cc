package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type key string

const (
	RequestIDKey key = "request_id"
	CameraIDKey  key = "camera_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func WithCameraID(ctx context.Context, cameraID string) context.Context {
	return context.WithValue(ctx, CameraIDKey, cameraID)
}

func GetCameraID(ctx context.Context) string {
	cameraID, _ := ctx.Value(CameraIDKey).(string)
	return cameraID
}

func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := context.Background()

	requestID, ok := c.Locals("X-Request-ID").(string)
	if !ok || requestID == "" {
		requestID = c.Get("X-Request-ID")

		if requestID == "" {
			requestID = "unknown"
		}
	}

	ctx = WithRequestID(ctx, requestID)
	if cameraID := c.Params("camera_id"); cameraID != "" {
		ctx = WithCameraID(ctx, cameraID)
	}
	return ctx
}

package handlerUtil

import (
	"ConveyorVision/internal/api/conveyor"
	"ConveyorVision/internal/belt"
	"ConveyorVision/pkg/log"
	"ConveyorVision/pkg/response"
	"ConveyorVision/pkg/utils"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	// Frame preconditions from the inference core
	if errors.Is(err, belt.ErrNilFrame) || errors.Is(err, belt.ErrEmptyFrame) {
		h.logger.WithFields(fields).Warn("Frame rejected")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error: "Frame has no pixels",
			Code:  "EMPTY_FRAME",
		})
	}

	// Upload validation
	if errors.Is(err, utils.ErrNoFile) {
		h.logger.WithFields(fields).Warn("No frame uploaded")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "No frame uploaded. Send the image in the 'image' form field.",
			Code:  "NO_FILE",
		})
	}

	if errors.Is(err, utils.ErrNotAnImage) {
		h.logger.WithFields(fields).Warn("Invalid file type")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Invalid file type. Only images are allowed.",
			Code:  "INVALID_FILE_TYPE",
		})
	}

	if errors.Is(err, utils.ErrFileTooLarge) || errors.Is(err, conveyor.ErrFrameTooLarge) {
		h.logger.WithFields(fields).Warn("File too large")
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error: "File too large. Maximum size is 5MB.",
			Code:  "FILE_TOO_LARGE",
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		entry := h.logger.WithFields(fields).WithField("code", respErr.Code)
		if respErr.Code >= fiber.StatusInternalServerError {
			entry.Error("Operation failed with error response")
		} else {
			entry.Warn("Operation failed with error response")
		}
		return c.Status(respErr.Code).JSON(fiber.Map{"error": err.Error()})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(fields).Warn("Request rejected")
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	traceID := log.ErrorWithTraceID(fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":    "An unexpected error occurred",
		"trace_id": traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	details := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		details = verrs[0].Field() + " failed on '" + verrs[0].Tag() + "'"
	}

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "Validation failed: " + err.Error(),
		Code:    "VALIDATION_ERROR",
		Details: details,
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(fiberUtils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

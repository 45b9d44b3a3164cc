package conveyor

import (
	"ConveyorVision/pkg/response"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")
	ErrCameraNotFound      = response.NewError(http.StatusNotFound, "camera session not found")
	ErrInvalidFrame        = response.NewError(http.StatusBadRequest, "frame could not be decoded")
	ErrEmptyFrame          = response.NewError(http.StatusUnprocessableEntity, "frame has no pixels")
	ErrFrameTooLarge       = response.NewError(http.StatusRequestEntityTooLarge, "frame exceeds size limit")
	ErrInvalidConfig       = response.NewError(http.StatusBadRequest, "invalid belt configuration")
	ErrBaselineExists      = response.NewError(http.StatusConflict, "texture baseline already captured")
	ErrInvalidCameraID     = response.NewError(http.StatusBadRequest, "invalid camera id")
)

package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/directory"
	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/internal/service"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	var admittedErr *admission.AlreadyAdmittedError
	if errors.As(err, &admittedErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: admittedErr.Error(),
			Code:  "ALREADY_ADMITTED",
		})
		return
	}

	var partialErr *service.PartialWriteError
	if errors.As(err, &partialErr) {
		// Earlier steps committed; the operator needs to reconcile.
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "operation partially applied; contact an administrator",
			Code:  "PARTIAL_WRITE",
		})
		return
	}

	switch {
	case errors.Is(err, admission.ErrAdmissionNotFound),
		errors.Is(err, bed.ErrBedNotFound),
		errors.Is(err, directory.ErrPatientNotFound),
		errors.Is(err, directory.ErrDoctorNotFound),
		errors.Is(err, directory.ErrPanelNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, bed.ErrBedUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "BED_UNAVAILABLE"})

	case errors.Is(err, service.ErrFutureTimestamp),
		errors.Is(err, admission.ErrAdmissionTerminal),
		errors.Is(err, admission.ErrInvalidStatusTransition),
		errors.Is(err, admission.ErrInvalidStatus),
		errors.Is(err, admission.ErrInvalidIdentityDocType),
		errors.Is(err, admission.ErrNoDoctors):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrAllocationFailed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "could not allocate an admission number, try again",
			Code:  "ALLOCATION_FAILED",
		})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}
	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

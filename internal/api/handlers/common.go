package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridian-wealth/advisory_service/pkg/errors"
)

// ErrorResponse is the standard error body for all endpoints.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError maps a service error onto the standard error body. Coded
// errors carry their own HTTP status; anything else is a 500.
func respondError(c *gin.Context, err error) {
	var ae *errors.AdvisoryError
	if goerrors.As(err, &ae) {
		c.JSON(ae.StatusCode, ErrorResponse{
			Code:    string(ae.Code),
			Message: ae.Message,
			Details: ae.Details,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    string(errors.ErrCodeInternal),
		Message: "internal server error",
	})
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    string(errors.ErrCodeInvalidInput),
		Message: message,
	})
}

// parseUUIDParam parses a path parameter as a UUID.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUIDQuery parses an optional query parameter as a UUID.
// A missing parameter yields a nil pointer.
func parseOptionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondBadRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}

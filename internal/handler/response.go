package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
	pkgvalidator "github.com/jwalitptl/clinic-portal/pkg/validator"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func Respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// RespondMessage sends a success envelope carrying only a message.
func RespondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, &Response{Status: "success", Message: message})
}

// RespondError renders err in the error envelope. The error is also recorded
// on the context so the error middleware can log the cause.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		c.JSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, NewErrorResponse("Request timeout"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse("Internal server error"))
	}
}

// BindJSON decodes and validates the request body into req. On failure it
// writes the error response and returns false.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondError(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return apperrors.NewValidation(pkgvalidator.Describe(fieldErrs))
	}
	return apperrors.NewBadRequest("Invalid request body", err)
}

// ParamID parses a positive integer path parameter.
func ParamID(c *gin.Context, name, resource string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, apperrors.NewBadRequest("Invalid "+resource+" ID", err))
		return 0, false
	}
	return id, true
}

// QueryID parses an optional positive integer query parameter. Absent
// parameters yield 0.
func QueryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, apperrors.NewBadRequest("Invalid "+name, err))
		return 0, false
	}
	return id, true
}

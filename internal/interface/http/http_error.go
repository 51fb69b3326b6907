package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
	apperrors "github.com/yanqian/mars-clock/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// domainHTTPError maps clock errors onto response statuses.
func domainHTTPError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	switch {
	case apperrors.IsCode(err, marsclock.CodeMissingMode):
		return NewHTTPError(http.StatusBadRequest, code, errMessage(err), err)
	case apperrors.IsCode(err, marsclock.CodeFetchFailed):
		return NewHTTPError(http.StatusBadGateway, code, "could not fetch mars time", err)
	default:
		return asHTTPError(err)
	}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

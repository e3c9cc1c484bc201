package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/N9work/CrewAi-Project/internal/agent/core"
	"github.com/N9work/CrewAi-Project/internal/catalog"
	"github.com/N9work/CrewAi-Project/internal/tools/websearch"
)

// errorResponse maps a planning failure to a status code and envelope.
func errorResponse(err error) (int, HTTPError) {
	var (
		invalid  *catalog.InvalidParameterError
		cfgErr   *websearch.ConfigurationError
		toolErr  *websearch.ToolInvocationError
		stageErr *core.StageExecutionError
		httpErr  *echo.HTTPError
	)
	body := HTTPError{Error: err.Error()}
	if errors.As(err, &stageErr) {
		idx := stageErr.Index
		body.Stage = &idx
	}

	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalid):
		code = http.StatusBadRequest
		body.Error = fmt.Sprintf("invalid %s option", invalid.Field)
		body.Field = invalid.Field
		body.Value = invalid.Value
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if httpErr.Message != nil {
			body.Error = fmt.Sprint(httpErr.Message)
		}
	case errors.As(err, &cfgErr):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
		body.Error = "trip planning timed out"
		if errors.As(err, &toolErr) {
			body.Error = "search request timed out"
			body.Status = toolErr.StatusCode
		}
	case errors.As(err, &toolErr):
		code = http.StatusBadGateway
		body.Status = toolErr.StatusCode
	}
	body.Detail = body.Error
	return code, body
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskboard/domain"
	"taskboard/gateway"
)

// statusFor maps the error taxonomy onto HTTP statuses and an error stage
// label for request metrics.
func statusFor(err error) (int, string) {
	var (
		verr  *domain.ValidationError
		aerr  *domain.AuthError
		nferr *domain.NotFoundError
		nerr  *domain.NetworkError
		ferr  *gateway.FetchError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &aerr):
		return http.StatusUnauthorized, "auth"
	case errors.As(err, &nferr):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &nerr), errors.As(err, &ferr):
		return http.StatusBadGateway, "network"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(c echo.Context, err error) error {
	status, stage := statusFor(err)
	metricsFrom(c).SetErrorStage(stage)
	body := errorResponse{Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		body.Error = http.StatusText(status)
	}
	return c.JSON(status, body)
}

func badRequest(msg string) error {
	return &domain.ValidationError{Fields: map[string]string{"body": msg}}
}

// decodeBody reads a JSON request body of at most maxBodySize bytes and
// rejects unknown fields.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid body")
	}
	return nil
}

package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GzipRequestMiddleware lets clients send gzip-compressed JSON. The inflated
// body is capped at maxBytes and a body that is not gzip is answered with 400.
func GzipRequestMiddleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if contentEncoded(c.Request().Header.Get(echo.HeaderContentEncoding), "gzip") {
				if err := inflateBody(c.Request(), maxBytes); err != nil {
					return writeError(c, badRequest("invalid gzip body"))
				}
			}
			return next(c)
		}
	}
}

// inflateBody swaps the request body for its decompressed stream.
func inflateBody(req *http.Request, limit int64) error {
	raw := req.Body
	zr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return err
	}
	req.Body = inflatedBody{Reader: io.LimitReader(zr, limit), zr: zr, raw: raw}
	req.ContentLength = -1
	for _, h := range []string{echo.HeaderContentEncoding, echo.HeaderContentLength} {
		req.Header.Del(h)
	}
	return nil
}

func contentEncoded(header, coding string) bool {
	for header != "" {
		var token string
		token, header, _ = strings.Cut(header, ",")
		if strings.EqualFold(strings.TrimSpace(token), coding) {
			return true
		}
	}
	return false
}

type inflatedBody struct {
	io.Reader
	zr  *gzip.Reader
	raw io.ReadCloser
}

func (b inflatedBody) Close() error {
	return errors.Join(b.zr.Close(), b.raw.Close())
}

// noStore marks responses as per-user and uncacheable.
func noStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		c.Response().Header().Add(echo.HeaderVary, echo.HeaderAuthorization)
		return next(c)
	}
}

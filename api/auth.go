package api

import (
	"context"
	"errors"
	"net/http"
	"unsafe"

	"github.com/labstack/echo/v4"

	"taskboard/domain"
	"taskboard/identity"
)

const sessionKey = "session"

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

var bearerPrefix = [...]byte{'B', 'e', 'a', 'r', 'e', 'r', ' '}

// SessionVerifier resolves a bearer token to a live session.
type SessionVerifier interface {
	Authenticate(ctx context.Context, token string) (identity.Session, error)
}

// RequireSession authenticates the request and stores the session on the
// context. The token comes from the Authorization header, or from the token
// query parameter for clients that cannot set headers, such as EventSource.
// Recovery tokens are only accepted when allowRecovery is set.
func RequireSession(verifier SessionVerifier, allowRecovery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := tokenFromRequest(c.Request())
			if err != nil {
				return writeError(c, &domain.AuthError{Reason: err.Error()})
			}
			sess, err := verifier.Authenticate(c.Request().Context(), readOnlyString(token))
			if err != nil {
				return writeError(c, err)
			}
			if sess.Purpose == identity.PurposeRecovery && !allowRecovery {
				return writeError(c, &domain.AuthError{Reason: "recovery token cannot be used here"})
			}
			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

func sessionFrom(c echo.Context) identity.Session {
	sess, _ := c.Get(sessionKey).(identity.Session)
	return sess
}

func tokenFromRequest(req *http.Request) ([]byte, error) {
	values := req.Header.Values(echo.HeaderAuthorization)
	if len(values) == 0 || values[0] == "" {
		if q := req.URL.Query().Get("token"); q != "" {
			return bearerTokenFromString("Bearer " + q)
		}
		return nil, errMissingAuthorization
	}
	return bearerTokenFromString(values[0])
}

func bearerTokenFromString(raw string) ([]byte, error) {
	start := 0
	end := len(raw)
	for start < end && raw[start] == ' ' {
		start++
	}
	for end > start && raw[end-1] == ' ' {
		end--
	}
	if start >= end {
		return nil, errMissingAuthorization
	}
	tokenBytes := readOnlyBytes(raw[start:end])
	if len(tokenBytes) <= len(bearerPrefix) || !hasBearerPrefix(tokenBytes) {
		return nil, errBadAuthorization
	}
	tokenBytes = tokenBytes[len(bearerPrefix):]
	if countByte(tokenBytes, '.') != 2 {
		return nil, errBadAuthorization
	}
	return tokenBytes, nil
}

func hasBearerPrefix(value []byte) bool {
	for i := range bearerPrefix {
		if value[i] != bearerPrefix[i] {
			return false
		}
	}
	return true
}

func countByte(buf []byte, target byte) int {
	count := 0
	for _, b := range buf {
		if b == target {
			count++
		}
	}
	return count
}

func readOnlyBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func readOnlyString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

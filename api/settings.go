package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"taskboard/domain"
)

// prefersDark reads the client colour-scheme hint used when no theme is stored.
func prefersDark(c echo.Context) bool {
	v := strings.Trim(c.Request().Header.Get(headerPrefersScheme), `" `)
	return strings.EqualFold(v, string(domain.ThemeDark))
}

func getSettings(store SettingsStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		theme, err := store.GetTheme(c.Request().Context(), sessionFrom(c).UserID)
		if err != nil {
			return writeError(c, err)
		}
		c.Response().Header().Add(echo.HeaderVary, headerPrefersScheme)
		return c.JSON(http.StatusOK, domain.ResolveTheme(theme, prefersDark(c)))
	}
}

func putSettings(store SettingsStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req settingsRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		if !req.Theme.Valid() {
			return writeError(c, &domain.ValidationError{Fields: map[string]string{"theme": "Theme must be dark or light"}})
		}
		if err := store.SaveTheme(c.Request().Context(), sessionFrom(c).UserID, req.Theme); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, domain.Settings{Theme: req.Theme, Stored: true})
	}
}

// toggleTheme flips the effective theme and stores the result.
func toggleTheme(store SettingsStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID := sessionFrom(c).UserID
		stored, err := store.GetTheme(ctx, userID)
		if err != nil {
			return writeError(c, err)
		}
		next := domain.ResolveTheme(stored, prefersDark(c)).Theme.Toggle()
		if err := store.SaveTheme(ctx, userID, next); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, domain.Settings{Theme: next, Stored: true})
	}
}

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskboard/domain"
)

func signUp(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form domain.SignUpForm
		if err := decodeBody(c, &form); err != nil {
			return writeError(c, err)
		}
		res, err := sessions.SignUp(c.Request().Context(), form)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, res)
	}
}

func signIn(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form domain.SignInForm
		if err := decodeBody(c, &form); err != nil {
			return writeError(c, err)
		}
		res, err := sessions.SignIn(c.Request().Context(), form)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func signOut(sessions Sessions, boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := sessionFrom(c)
		if err := sessions.SignOut(c.Request().Context(), sess); err != nil {
			return writeError(c, err)
		}
		boards.Drop(sess.UserID)
		return c.NoContent(http.StatusNoContent)
	}
}

func getSession() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, sessionFrom(c))
	}
}

func getUser(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		profile, err := sessions.User(c.Request().Context(), sessionFrom(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, profile)
	}
}

func requestPasswordReset(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form domain.ResetForm
		if err := decodeBody(c, &form); err != nil {
			return writeError(c, err)
		}
		if err := sessions.RequestPasswordReset(c.Request().Context(), form); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

func updatePassword(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form domain.PasswordForm
		if err := decodeBody(c, &form); err != nil {
			return writeError(c, err)
		}
		if err := sessions.UpdatePassword(c.Request().Context(), sessionFrom(c), form); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// deleteAccount removes the owner's data and ends the session. The board
// controller is dropped even when deletion fails part way.
func deleteAccount(sessions Sessions, boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := sessionFrom(c)
		err := sessions.DeleteAccount(c.Request().Context(), sess)
		boards.Drop(sess.UserID)
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

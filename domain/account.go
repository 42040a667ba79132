package domain

import (
	"strings"
	"time"
)

// Account holds the credentials of a user.
type Account struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the public row kept for each user.
type Profile struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUpForm is submitted when registering.
type SignUpForm struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"fullName"`
	Username        string `json:"username"`
}

func (f SignUpForm) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(f.FullName) == "" {
		v.Add("fullName", "Full name is required")
	}
	if strings.TrimSpace(f.Username) == "" {
		v.Add("username", "Username is required")
	}
	checkEmail(v, strings.TrimSpace(f.Email))
	checkPassword(v, f.Password, f.ConfirmPassword)
	return v.OrNil()
}

// SignInForm is submitted when logging in.
type SignInForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f SignInForm) Validate() error {
	v := &ValidationError{}
	checkEmail(v, strings.TrimSpace(f.Email))
	if f.Password == "" {
		v.Add("password", "Password is required")
	}
	return v.OrNil()
}

// PasswordForm sets a new password for the signed-in user.
type PasswordForm struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (f PasswordForm) Validate() error {
	v := &ValidationError{}
	checkPassword(v, f.Password, f.ConfirmPassword)
	return v.OrNil()
}

// ResetForm requests a password reset mail.
type ResetForm struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirectTo"`
}

func (f ResetForm) Validate() error {
	v := &ValidationError{}
	checkEmail(v, strings.TrimSpace(f.Email))
	return v.OrNil()
}

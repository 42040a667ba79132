package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// ValidateFields checks a create form before it is sent to the store.
func ValidateFields(f TaskFields) error {
	v := &ValidationError{}
	checkTitle(v, f.Title)
	checkDescription(v, f.Description)
	if f.Status != "" && !f.Status.Valid() {
		v.Add("status", "Unknown status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		v.Add("priority", "Unknown priority")
	}
	return v.OrNil()
}

// ValidatePatch checks only the fields present in p.
func ValidatePatch(p TaskPatch) error {
	v := &ValidationError{}
	if p.Title != nil {
		checkTitle(v, *p.Title)
	}
	if p.Description != nil {
		checkDescription(v, *p.Description)
	}
	if p.Status != nil && !p.Status.Valid() {
		v.Add("status", "Unknown status")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		v.Add("priority", "Unknown priority")
	}
	return v.OrNil()
}

// ValidateRecord enforces the row constraints a record store applies on write.
func ValidateRecord(t Task) error {
	v := &ValidationError{}
	if strings.TrimSpace(t.Title) == "" {
		v.Add("title", "Title is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		v.Add("description", "Description is required")
	}
	if !t.Status.Valid() {
		v.Add("status", "Unknown status")
	}
	if !t.Priority.Valid() {
		v.Add("priority", "Unknown priority")
	}
	return v.OrNil()
}

func checkTitle(v *ValidationError, title string) {
	if strings.TrimSpace(title) == "" {
		v.Add("title", "Title is required")
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		v.Add("title", "Title must be less than 100 characters")
	}
}

func checkDescription(v *ValidationError, desc string) {
	if strings.TrimSpace(desc) == "" {
		v.Add("description", "Description is required")
	}
}

// ValidEmail applies the loose shape check used by the sign-up form.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func checkEmail(v *ValidationError, email string) {
	if email == "" {
		v.Add("email", "Email is required")
	} else if !ValidEmail(email) {
		v.Add("email", "Email is invalid")
	}
}

func checkPassword(v *ValidationError, password, confirm string) {
	if password == "" {
		v.Add("password", "Password is required")
	} else if len(password) < minPasswordLength {
		v.Add("password", "Password must be at least 6 characters")
	}
	if password != confirm {
		v.Add("confirmPassword", "Passwords do not match")
	}
}

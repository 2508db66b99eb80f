package api

import (
	"net/mail"
	"regexp"
	"unicode/utf8"
)

// Validation bounds for request payloads.
const (
	usernameMinLen = 3
	usernameMaxLen = 30
	passwordMinLen = 6
	passwordMaxLen = 100
	nameMaxLen     = 50
	titleMaxLen    = 100
	contentMaxLen  = 10000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// validUsername reports whether s is 3-30 characters of letters, digits,
// and underscores.
func validUsername(s string) bool {
	n := len(s)
	return n >= usernameMinLen && n <= usernameMaxLen && usernamePattern.MatchString(s)
}

// validEmail reports whether s parses as a bare RFC 5322 address.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func validateRegister(req registerRequest) []fieldError {
	var errs []fieldError
	if !validUsername(req.Username) {
		errs = append(errs, fieldError{
			Field:   "username",
			Message: "Username must be 3-30 characters of letters, numbers, and underscores",
		})
	}
	if !validEmail(req.Email) {
		errs = append(errs, fieldError{Field: "email", Message: "Please provide a valid email"})
	}
	if n := len(req.Password); n < passwordMinLen || n > passwordMaxLen {
		errs = append(errs, fieldError{
			Field:   "password",
			Message: "Password must be 6-100 characters",
		})
	}
	if req.FirstName == "" || utf8.RuneCountInString(req.FirstName) > nameMaxLen {
		errs = append(errs, fieldError{
			Field:   "firstName",
			Message: "First name is required and must be at most 50 characters",
		})
	}
	if req.LastName == "" || utf8.RuneCountInString(req.LastName) > nameMaxLen {
		errs = append(errs, fieldError{
			Field:   "lastName",
			Message: "Last name is required and must be at most 50 characters",
		})
	}
	return errs
}

func validateLogin(req loginRequest) []fieldError {
	var errs []fieldError
	if req.Login == "" {
		errs = append(errs, fieldError{Field: "login", Message: "Username or email is required"})
	}
	if req.Password == "" {
		errs = append(errs, fieldError{Field: "password", Message: "Password is required"})
	}
	return errs
}

func validateTitle(title string) []fieldError {
	if utf8.RuneCountInString(title) > titleMaxLen {
		return []fieldError{{Field: "title", Message: "Title must be at most 100 characters"}}
	}
	return nil
}

func validateContent(content string) []fieldError {
	if content == "" || utf8.RuneCountInString(content) > contentMaxLen {
		return []fieldError{{
			Field:   "content",
			Message: "Content must be 1-10000 characters",
		}}
	}
	return nil
}

func validateRole(role string) []fieldError {
	if role != "user" && role != "assistant" {
		return []fieldError{{Field: "role", Message: "Role must be user or assistant"}}
	}
	return nil
}

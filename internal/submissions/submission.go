package submissions

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxShortFieldLen = 255
	maxMessageLen    = 5000
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{1,20}$`)

type Submission struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidationError lists every field that failed validation, in form order
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// FromForm reads a submission from the contact form fields, trimming the values.
// Older copies of the landing page post the fields as input1 to input5.
func FromForm(form url.Values) Submission {
	return Submission{
		Name:    formValue(form, "name", "input1"),
		Email:   formValue(form, "email", "input2"),
		Address: formValue(form, "address", "input3"),
		Phone:   formValue(form, "phone", "input4"),
		Message: formValue(form, "message", "input5"),
	}
}

func formValue(form url.Values, key, legacyKey string) string {
	if value := strings.TrimSpace(form.Get(key)); value != "" {
		return value
	}
	return strings.TrimSpace(form.Get(legacyKey))
}

// Validate returns a *ValidationError when any field is missing or malformed
func (s Submission) Validate() error {
	var invalid []string
	if !validText(s.Name, maxShortFieldLen) {
		invalid = append(invalid, "name")
	}
	if !validEmail(s.Email) {
		invalid = append(invalid, "email")
	}
	if !validText(s.Address, maxShortFieldLen) {
		invalid = append(invalid, "address")
	}
	if !phoneRegex.MatchString(s.Phone) {
		invalid = append(invalid, "phone")
	}
	if !validText(s.Message, maxMessageLen) {
		invalid = append(invalid, "message")
	}

	if len(invalid) > 0 {
		return &ValidationError{Fields: invalid}
	}
	return nil
}

func validText(value string, maxLen int) bool {
	return value != "" && utf8.RuneCountInString(value) <= maxLen
}

// validEmail accepts a single bare address, "Ada <ada@example.com>" is rejected
func validEmail(value string) bool {
	if value == "" || utf8.RuneCountInString(value) > maxShortFieldLen {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	return addr.Address == value
}

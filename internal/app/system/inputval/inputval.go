// Package inputval holds request-input validation shared by the JSON APIs.
package inputval

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/waffle/pantry/validate"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldError is one failed check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects field errors in the order they were found.
type Result struct {
	Errors []FieldError
}

// Add records an error for field.
func (r *Result) Add(field, msg string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: msg})
}

// HasErrors reports whether any check failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Required adds an error when value is blank after trimming.
func (r *Result) Required(field, label, value string) {
	if strings.TrimSpace(value) == "" {
		r.Add(field, label+" is required.")
	}
}

// MinLen adds an error when the trimmed value has fewer than n characters.
func (r *Result) MinLen(field, label, value string, n int) {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		r.Add(field, label+" must be at least "+strconv.Itoa(n)+" characters.")
	}
}

// MaxLen adds an error when value has more than n characters.
func (r *Result) MaxLen(field, label, value string, n int) {
	if utf8.RuneCountInString(value) > n {
		r.Add(field, label+" must be at most "+strconv.Itoa(n)+" characters.")
	}
}

// Email adds an error when value is not a plausible address.
func (r *Result) Email(field, value string) {
	if !IsValidEmail(value) {
		r.Add(field, "A valid email address is required.")
	}
}

// IsValidEmail reports whether s is a bare address (no display name, no
// whitespace) accepted by WAFFLE's validator.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return validate.SimpleEmailValid(s)
}

// IsValidObjectID reports whether s is a 24-char hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// ParseTags splits a comma-separated tag string. Segments are trimmed, empty
// ones dropped, and only the first occurrence of a tag is kept.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags applies the ParseTags rules to an already-split list.
// It never returns nil, so stored posts always carry an array.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Tags decodes from either a JSON string ("a, b") or an array (["a","b"])
// and normalizes the result.
type Tags []string

func (t *Tags) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = ParseTags(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*t = NormalizeTags(list)
	return nil
}

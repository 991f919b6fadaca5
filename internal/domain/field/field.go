// Package field collects per-field input validation failures so that every
// domain reports them in the same shape.
package field

import "strings"

// Error is a validation failure for a single input field.
type Error struct {
	Name    string
	Message string
}

// Errors is a list of field failures. The zero value is ready to use.
type Errors []Error

// Add records a failure for the named field.
func (e *Errors) Add(name, message string) {
	*e = append(*e, Error{Name: name, Message: message})
}

// Err returns e as an error, or nil when no failure was recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Error implements error. The message of the first failure is used as the
// summary, matching what clients display.
func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Message
	}
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Name + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Required records a failure when v is blank.
func (e *Errors) Required(name, v, message string) bool {
	if strings.TrimSpace(v) == "" {
		e.Add(name, message)
		return false
	}
	return true
}

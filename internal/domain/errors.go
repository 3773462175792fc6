package domain

import (
	"errors"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a class session has not been started.
	ErrSessionNotFound = errors.New("class session not found")
	// ErrGradeNotFound indicates the curriculum holds no roster for a grade.
	ErrGradeNotFound = errors.New("grade not found in curriculum")
	// ErrRecordNotFound indicates a participation record id is unknown.
	ErrRecordNotFound = errors.New("participation record not found")
	// ErrNoStudents is returned by a draw when the roster is empty.
	ErrNoStudents = errors.New("no students in roster")
	// ErrPickerBusy is returned when a draw is attempted while a student is still active.
	ErrPickerBusy = errors.New("a student is already active")
	// ErrNoActiveStudent is returned when an action needs a drawn student and there is none.
	ErrNoActiveStudent = errors.New("no active student")
	// ErrTimerRunning is returned when marking absent after the response timer started.
	ErrTimerRunning = errors.New("response timer already running")
	// ErrTimerNotStarted is returned when judging a response that was never timed.
	ErrTimerNotStarted = errors.New("response timer not started")
	// ErrStorageFull indicates the local store rejected a write for lack of space.
	ErrStorageFull = errors.New("local storage is full")
	// ErrRemotePermission indicates the remote document store refused access.
	ErrRemotePermission = errors.New("remote store permission denied")
	// ErrRemoteNotConnected is returned by remote reads while no connection is open.
	ErrRemoteNotConnected = errors.New("remote store not connected")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError rejects input at the boundary; no state is mutated.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(flds ...FieldError) error {
	return &ValidationError{Fields: flds}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

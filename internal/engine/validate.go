package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/imposter-client/internal/types"
)

var ErrEmptyCode = errors.New("empty lobby code")
var ErrEmptyName = errors.New("empty name")
var ErrEmptyImpostors = errors.New("empty impostor count")
var ErrImpostorRange = errors.New("impostor count out of range")

const (
	FieldCode      = "code"
	FieldName      = "name"
	FieldImpostors = "impostors"
)

// FieldError is a local, recoverable validation failure. It is shown next to
// the offending input and never sent to the server.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }
func (e *FieldError) Unwrap() error { return e.Err }

func fieldError(field, msg string, err error) *FieldError {
	return &FieldError{Field: field, Message: msg, Err: err}
}

func ValidateCode(raw string) (types.LobbyCode, error) {
	code := types.ParseCode(raw)
	if code.Empty() {
		return "", fieldError(FieldCode, "Please enter a lobby code", ErrEmptyCode)
	}
	return code, nil
}

func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fieldError(FieldName, "Please enter your name", ErrEmptyName)
	}
	return name, nil
}

// ValidateImpostors checks the host's impostor count against the current
// roster: at least one impostor and at least one word holder.
func ValidateImpostors(raw string, players int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fieldError(FieldImpostors, "Please enter number of impostors", ErrEmptyImpostors)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n >= players {
		msg := fmt.Sprintf("Must have 1 to %d impostors for %d players", max(1, players-1), players)
		return 0, fieldError(FieldImpostors, msg, ErrImpostorRange)
	}
	return n, nil
}

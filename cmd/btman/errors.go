package main

import (
	"errors"

	"github.com/srg/btman/adapter"
)

// FormatUserError maps internal errors to actionable messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, adapter.ErrNoAdapter):
		return "no Bluetooth adapter found on this system"
	case errors.Is(err, adapter.ErrUnsupported):
		return "the selected adapter backend does not support this operation"
	default:
		return err.Error()
	}
}

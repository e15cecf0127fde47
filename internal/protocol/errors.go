package protocol

import (
	"errors"

	"stargen.ai/internal/sim/accrete"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrBusy       = "E_BUSY"

	// Generation outcomes.
	ErrInvalidParameter = "E_INVALID_PARAMETER"
	ErrDidNotConverge   = "E_DID_NOT_CONVERGE"
	ErrStalled          = "E_STALLED"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrBadRequest:       {},
	ErrBusy:             {},
	ErrInvalidParameter: {},
	ErrDidNotConverge:   {},
	ErrStalled:          {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a generation error to its wire code. nil maps to "".
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, accrete.ErrInvalidParameter):
		return ErrInvalidParameter
	case errors.Is(err, accrete.ErrDidNotConverge):
		return ErrDidNotConverge
	case errors.Is(err, accrete.ErrStalledGeneration):
		return ErrStalled
	}
	return ErrInternal
}

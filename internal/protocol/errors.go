package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session routing/state.
	ErrNotJoined     = "E_NOT_JOINED"
	ErrAlreadyJoined = "E_ALREADY_JOINED"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownID     = "E_UNKNOWN_ID"
	ErrOutOfRange    = "E_OUT_OF_RANGE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrNotReady      = "E_NOT_READY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrNotJoined:       {},
	ErrAlreadyJoined:   {},
	ErrBadRequest:      {},
	ErrUnknownID:       {},
	ErrOutOfRange:      {},
	ErrInvalidTarget:   {},
	ErrConflict:        {},
	ErrNotReady:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Room routing/state.
	ErrRoomFull     = "E_ROOM_FULL"
	ErrRoomNotFound = "E_ROOM_NOT_FOUND"
	ErrBadRoomCode  = "E_BAD_ROOM_CODE"

	// Reducer layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNoFunds       = "E_NO_FUNDS"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrWrongLocation = "E_WRONG_LOCATION"
	ErrNoTime        = "E_NO_TIME"
	ErrRequirements  = "E_REQUIREMENTS"
	ErrConflict      = "E_CONFLICT"
	ErrEliminated    = "E_ELIMINATED"
	ErrTimeout       = "E_TIMEOUT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRoomFull:        {},
	ErrRoomNotFound:    {},
	ErrBadRoomCode:     {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrNoFunds:         {},
	ErrInvalidTarget:   {},
	ErrWrongLocation:   {},
	ErrNoTime:          {},
	ErrRequirements:    {},
	ErrConflict:        {},
	ErrEliminated:      {},
	ErrTimeout:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

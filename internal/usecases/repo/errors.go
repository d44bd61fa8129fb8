package repo

type Error struct {
	Code    int64
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var ErrInstrumentNotFound = &Error{Code: -30, Message: "instrument not found"}

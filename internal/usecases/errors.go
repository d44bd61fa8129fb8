package usecases

type UseCaseError struct {
	Code    int64
	Message string
}

func (e *UseCaseError) Error() string {
	return e.Message
}

var (
	ErrInvalidInstrumentCode = &UseCaseError{Code: -1001, Message: "instrument code invalid"}
	ErrInstrumentNotFound    = &UseCaseError{Code: -1002, Message: "instrument not found"}
	ErrFeedNotRunning        = &UseCaseError{Code: -1003, Message: "feed is not running"}
)

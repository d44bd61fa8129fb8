package resp

type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

var (
	ErrCodeRequired        = &APIError{Code: -101, Message: "code required"}
	ErrCodeInvalid         = &APIError{Code: -102, Message: "code invalid"}
	ErrNotFound            = &APIError{Code: -103, Message: "not found"}
	ErrUpstreamUnavailable = &APIError{Code: -104, Message: "upstream unavailable"}
)

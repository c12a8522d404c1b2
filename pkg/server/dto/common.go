package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Error codes returned in ErrorResponse.Error.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidArchive = "invalid_archive"
	CodeEmptyCorpus    = "empty_corpus"
	CodeInternal       = "internal_error"
)

// Package proxy defines the value types that flow through the gateway.
package proxy

// Request represents an inbound request to be forwarded upstream.
type Request struct {
	Method    string
	Path      string
	Query     string
	Headers   map[string]string
	Body      []byte
	RemoteIP  string
	UserAgent string
	TraceID   string
}

// Response represents the upstream's answer.
type Response struct {
	Status    int
	Headers   map[string]string
	Body      []byte
	LatencyMs int64
}

// ErrorResponse is a gateway-originated error.
type ErrorResponse struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}

// Well-known gateway errors.
var (
	ErrUpstreamError = ErrorResponse{
		Status:  502,
		Code:    "upstream_error",
		Message: "The upstream service could not be reached",
	}
	ErrNotFound = ErrorResponse{
		Status:  404,
		Code:    "not_found",
		Message: "The requested resource does not exist",
	}
	ErrRateLimited = ErrorResponse{
		Status:  429,
		Code:    "rate_limit_exceeded",
		Message: "Too many requests, slow down",
	}
)

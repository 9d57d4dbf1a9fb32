package owm

import (
	"errors"
	"fmt"
)

// Kind classifies how a gateway call failed.
type Kind int

const (
	// KindBadRequest: the request descriptor could not be built.
	KindBadRequest Kind = iota + 1
	// KindTransport: the call never produced a response (network, timeout, open breaker).
	KindTransport
	// KindServer: the API answered with a non-2xx status.
	KindServer
	// KindDecoding: a 2xx body did not match the expected schema.
	KindDecoding
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrTransport  = errors.New("transport failure")
	ErrServer     = errors.New("server error")
	ErrDecoding   = errors.New("decoding error")

	errBadBaseURL   = errors.New("bad base url")
	errMissingField = errors.New("missing required field")
)

// RequestError is returned by every failed gateway call.
type RequestError struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("owm %s: server error: status %d", e.Endpoint, e.StatusCode)
	case KindBadRequest:
		return fmt.Sprintf("owm %s: bad request: %v", e.Endpoint, e.Err)
	case KindDecoding:
		return fmt.Sprintf("owm %s: decoding error: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("owm %s: transport failure: %v", e.Endpoint, e.Err)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a RequestError against the Err* sentinels.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.Kind == KindBadRequest
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrServer:
		return e.Kind == KindServer
	case ErrDecoding:
		return e.Kind == KindDecoding
	}
	return false
}

func (k Kind) label() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindDecoding:
		return "decoding"
	}
	return "unknown"
}

// StatusCode extracts the HTTP status carried by a server error.
func StatusCode(err error) (int, bool) {
	var re *RequestError
	if errors.As(err, &re) && re.Kind == KindServer {
		return re.StatusCode, true
	}
	return 0, false
}

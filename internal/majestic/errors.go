package majestic

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// Messages surfaced for transport failures.
const (
	MsgTLS            = "SSL certificate validation failed"
	MsgConnectTimeout = "The request timed out while trying to connect to the server"
	MsgReadTimeout    = "The server did not send any data in the allotted amount of time"
	MsgConnection     = "Invalid endpoint or credentials"
)

// Kind classifies a connector failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTLS
	KindConnectTimeout
	KindReadTimeout
	KindConnection
	KindHTTPClient
	KindParse
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindTLS:
		return "tls_error"
	case KindConnectTimeout:
		return "connect_timeout"
	case KindReadTimeout:
		return "read_timeout"
	case KindConnection:
		return "connection_error"
	case KindHTTPClient:
		return "http_client_error"
	case KindParse:
		return "parse_error"
	case KindIO:
		return "io_error"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by every connector operation.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// NewError creates a classified error wrapping cause.
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Payload returns the value handed to the host platform. Classified HTTP
// responses carry {"error_description": msg}; everything else is the bare message.
func (e *Error) Payload() any {
	if e.Kind == KindHTTPClient {
		return map[string]string{"error_description": e.Message}
	}
	return e.Message
}

// AsError converts err into a classified error. Errors that are already
// classified are returned as is; anything else becomes fallback.
func AsError(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(fallback, err.Error(), err)
}

// ClassifyBodyError classifies a failure while reading a response body.
// The connection is established at that point, so timeouts are read timeouts.
func ClassifyBodyError(err error) *Error {
	return classifyTransportError(err, true)
}

func classifyTransportError(err error, connected bool) *Error {
	var (
		certErr    *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		dnsErr     *net.DNSError
		opErr      *net.OpError
	)

	switch {
	case errors.As(err, &certErr), errors.As(err, &authErr), errors.As(err, &hostErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr):
		return NewError(KindTLS, MsgTLS, err)
	case isTimeout(err):
		if connected {
			return NewError(KindReadTimeout, MsgReadTimeout, err)
		}
		return NewError(KindConnectTimeout, MsgConnectTimeout, err)
	case errors.As(err, &dnsErr), errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return NewError(KindConnection, MsgConnection, err)
	}

	return NewError(KindUnknown, err.Error(), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

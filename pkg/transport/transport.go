package transport

import (
	"context"
	"crypto/tls"
	"net/url"
	"time"

	"github.com/bft-labs/posnet/pkg/log"
)

// Transport performs one HTTP request over one connection.
// Every method reports transport-level failures as errors; an empty chunk
// with a nil error from ReadReplyBody marks the end of the body.
type Transport interface {
	// RequestArguments resolves rawURL into request arguments.
	RequestArguments(rawURL string) (Request, error)

	// Open connects to the host described by req.
	Open(ctx context.Context, req *Request) error

	// SendRequest writes the request line, headers and body.
	SendRequest(ctx context.Context, req *Request) error

	// ReadReplyHeaders reads the status line and response headers.
	ReadReplyHeaders(ctx context.Context) (Reply, error)

	// ReadReplyBody reads at most max bytes of the response body.
	ReadReplyBody(ctx context.Context, max int) ([]byte, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Options configures a Transport.
type Options struct {
	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration

	// DataTimeout bounds each individual read or write.
	DataTimeout time.Duration

	// UserAgent is sent as the User-Agent header.
	UserAgent string

	// Secure forces TLS regardless of the URL scheme.
	Secure bool

	// TLSConfig is cloned for every secure connection. Nil uses defaults.
	TLSConfig *tls.Config

	// Verbose enables Debug-level logging of transport internals.
	Verbose bool

	// Logger receives verbose output. Nil discards it.
	Logger log.Logger
}

// Request holds the resolved arguments of a single exchange.
type Request struct {
	Scheme     string
	HostName   string
	Port       int
	RequestURI string

	// Method is GET unless changed before SendRequest.
	Method string

	Headers map[string]string

	// PostValues is form-encoded into the body of a POST. Nil for GET.
	PostValues url.Values

	UserAgent      string
	ConnectTimeout time.Duration
	DataTimeout    time.Duration

	// Secure requests a TLS connection.
	Secure bool
}

// Reply holds the status line and headers of a response.
// Header names are lower-cased; repeated headers are joined with ", ".
type Reply struct {
	Status  int
	Proto   string
	Headers map[string]string
}

// Header returns the value of the named header, case-insensitively.
func (r Reply) Header(name string) string {
	return r.Headers[lower(name)]
}

package posnet

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/posnet/pkg/log"
	"github.com/bft-labs/posnet/pkg/transport"
)

const (
	// FieldName carries the XML payload, as a form field or query parameter.
	FieldName = "xmldata"

	ConnectTimeout = 30 * time.Second
	DataTimeout    = 60 * time.Second

	// UserAgent is the browser identity the gateway expects.
	UserAgent = "Mozilla/4.0 (compatible; MSIE 6.0; Windows NT 5.1)"

	// BodyChunkSize is the largest single read from the reply body.
	BodyChunkSize = 2000
)

// Method is the HTTP method used to submit the payload.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// ParseMethod parses "get" or "post", case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case http.MethodGet:
		return MethodGet, nil
	case http.MethodPost:
		return MethodPost, nil
	default:
		return "", fmt.Errorf("unsupported method %q (want GET or POST)", s)
	}
}

// Connector sends XML payloads to a POSNET gateway.
type Connector struct {
	url        string
	method     Method
	useTLS     bool
	debugLevel int
	debug      bool
	lastErr    *Error

	logger       log.Logger
	newTransport TransportFactory
	tlsConfig    *tls.Config
	observer     Observer
}

// New creates a Connector for the gateway at url.
func New(url string, opts ...Option) *Connector {
	c := &Connector{
		url:          url,
		method:       MethodPost,
		logger:       log.NewNoopLogger(),
		newTransport: defaultTransportFactory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send submits xmlPayload and returns the raw response body.
//
// On failure it returns an empty string and an *Error whose Kind names the
// step that failed; the same error is kept for LastError. The connection
// is closed before Send returns on every path.
func (c *Connector) Send(ctx context.Context, xmlPayload string) (string, error) {
	start := time.Now()
	reqID := uuid.NewString()

	body, perr := c.send(ctx, reqID, xmlPayload)
	if c.observer != nil {
		kind := KindNone
		if perr != nil {
			kind = perr.Kind
		}
		c.observer.ObserveSend(c.method, kind, time.Since(start))
	}

	if perr != nil {
		c.lastErr = perr
		if c.debug {
			c.logger.Error("posnet error",
				log.String("request_id", reqID),
				log.String("kind", perr.Kind.String()),
				log.String("error", perr.Msg),
			)
		}
		return "", perr
	}

	c.lastErr = nil
	return body, nil
}

func (c *Connector) send(ctx context.Context, reqID, xmlPayload string) (string, *Error) {
	target := c.url
	var postValues url.Values
	if c.method == MethodGet {
		target += "?" + FieldName + "=" + url.QueryEscape(xmlPayload)
	} else {
		postValues = url.Values{FieldName: {xmlPayload}}
	}

	t := c.newTransport(transport.Options{
		ConnectTimeout: ConnectTimeout,
		DataTimeout:    DataTimeout,
		UserAgent:      UserAgent,
		Secure:         c.useTLS,
		TLSConfig:      c.tlsConfig,
		Verbose:        c.debugLevel > 1,
		Logger:         c.logger,
	})
	defer t.Close()

	req, err := t.RequestArguments(target)
	if err != nil {
		return "", newError(ConnectFailed, err)
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Pragma"] = "nocache"
	if c.method == MethodPost {
		req.Method = string(MethodPost)
		req.PostValues = postValues
	}

	if c.debug {
		c.logger.Info("posnet opening connection",
			log.String("request_id", reqID),
			log.String("host", req.HostName),
			log.Bool("secure", req.Secure),
		)
	}
	if err := t.Open(ctx, &req); err != nil {
		return "", newError(ConnectFailed, err)
	}

	if c.debug {
		c.logger.Info("posnet sending request",
			log.String("request_id", reqID),
			log.String("method", req.Method),
			log.String("uri", req.RequestURI),
		)
	}
	if err := t.SendRequest(ctx, &req); err != nil {
		return "", newError(SendFailed, err)
	}

	reply, err := t.ReadReplyHeaders(ctx)
	if err != nil {
		return "", newError(ReadHeadersFailed, err)
	}
	if c.debug {
		c.logger.Info("posnet response status",
			log.String("request_id", reqID),
			log.Int("status", reply.Status),
		)
		if isRedirect(reply.Status) {
			c.logger.Info("posnet redirect not followed",
				log.String("request_id", reqID),
				log.Int("status", reply.Status),
				log.String("location", reply.Header("location")),
			)
		}
	}

	var body strings.Builder
	for {
		chunk, err := t.ReadReplyBody(ctx, BodyChunkSize)
		if err != nil {
			return "", newError(ReadBodyFailed, err)
		}
		if len(chunk) == 0 {
			break
		}
		body.Write(chunk)
	}
	return body.String(), nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
		return true
	}
	return false
}

// SetURL changes the gateway URL used by subsequent sends.
func (c *Connector) SetURL(url string) {
	c.url = url
}

// URL returns the gateway URL.
func (c *Connector) URL() string {
	return c.url
}

// SetMethod selects GET or POST. Any other value is ignored.
func (c *Connector) SetMethod(m Method) {
	if m == MethodGet || m == MethodPost {
		c.method = m
	}
}

// Method returns the HTTP method in use.
func (c *Connector) Method() Method {
	return c.method
}

// ForceTLS makes subsequent sends use TLS even for http:// URLs.
func (c *Connector) ForceTLS() {
	c.useTLS = true
}

// TLSForced reports whether ForceTLS was called.
func (c *Connector) TLSForced() bool {
	return c.useTLS
}

// SetDebugLevel sets the debug level: 0 silent, 1 connector logging,
// 2 connector and transport logging.
func (c *Connector) SetDebugLevel(level int) {
	c.debugLevel = level
	c.debug = level > 0
}

// DebugLevel returns the current debug level.
func (c *Connector) DebugLevel() int {
	return c.debugLevel
}

// SetError records msg as the last error.
func (c *Connector) SetError(msg string) {
	c.lastErr = &Error{Kind: KindNone, Msg: msg}
}

// Err returns the last error, or nil.
func (c *Connector) Err() error {
	if c.lastErr == nil {
		return nil
	}
	return c.lastErr
}

// LastError returns the message of the last error, or "".
func (c *Connector) LastError() string {
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Msg
}

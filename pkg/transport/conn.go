package transport

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/posnet/pkg/log"
)

const (
	defaultHTTPPort  = 80
	defaultHTTPSPort = 443
)

var (
	errNotOpen    = errors.New("connection is not open")
	errNotSent    = errors.New("request was not sent")
	errNoReply    = errors.New("reply headers were not read")
	errBadMaxRead = errors.New("read size must be positive")
)

// Conn is the default Transport. It dials TCP (optionally TLS), writes the
// request with net/http's wire encoder and parses the reply with
// http.ReadResponse, so identity, Content-Length and chunked bodies are all
// handled.
type Conn struct {
	opts   Options
	logger log.Logger

	conn net.Conn
	br   *bufio.Reader
	req  *http.Request
	resp *http.Response
	eof  bool

	dataTimeout time.Duration
}

// New creates a Transport with the given options.
func New(opts Options) *Conn {
	var logger log.Logger = log.NewNoopLogger()
	if opts.Verbose && opts.Logger != nil {
		logger = opts.Logger
	}
	return &Conn{opts: opts, logger: logger, dataTimeout: opts.DataTimeout}
}

// RequestArguments resolves rawURL into request arguments.
func (c *Conn) RequestArguments(rawURL string) (Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Request{}, fmt.Errorf("invalid url: %w", err)
	}

	scheme := lower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Request{}, fmt.Errorf("unsupported protocol %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return Request{}, fmt.Errorf("url %q has no host name", rawURL)
	}

	secure := scheme == "https" || c.opts.Secure

	port := defaultHTTPPort
	if secure {
		port = defaultHTTPSPort
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Request{}, fmt.Errorf("invalid port %q", p)
		}
	}

	return Request{
		Scheme:         scheme,
		HostName:       u.Hostname(),
		Port:           port,
		RequestURI:     u.RequestURI(),
		Method:         http.MethodGet,
		Headers:        map[string]string{},
		UserAgent:      c.opts.UserAgent,
		ConnectTimeout: c.opts.ConnectTimeout,
		DataTimeout:    c.opts.DataTimeout,
		Secure:         secure,
	}, nil
}

// Open connects to req.HostName:req.Port, performing a TLS handshake when
// req.Secure is set.
func (c *Conn) Open(ctx context.Context, req *Request) error {
	if c.conn != nil {
		return errors.New("connection already open")
	}

	addr := net.JoinHostPort(req.HostName, strconv.Itoa(req.Port))
	c.logger.Debug("connecting", log.String("addr", addr), log.Bool("secure", req.Secure))

	dialer := &net.Dialer{Timeout: req.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if req.Secure {
		cfg := &tls.Config{}
		if c.opts.TLSConfig != nil {
			cfg = c.opts.TLSConfig.Clone()
		}
		if cfg.ServerName == "" {
			cfg.ServerName = req.HostName
		}

		tc := tls.Client(conn, cfg)
		hsCtx := ctx
		if req.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			hsCtx, cancel = context.WithTimeout(ctx, req.ConnectTimeout)
			defer cancel()
		}
		if err := tc.HandshakeContext(hsCtx); err != nil {
			conn.Close()
			return fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		state := tc.ConnectionState()
		c.logger.Debug("tls established",
			log.String("addr", addr),
			log.String("version", tls.VersionName(state.Version)),
			log.String("cipher", tls.CipherSuiteName(state.CipherSuite)),
		)
		conn = tc
	}

	c.conn = conn
	c.logger.Debug("connected", log.String("addr", addr))
	return nil
}

// SendRequest writes the request to the open connection. A POST carries
// req.PostValues form-encoded in the body.
func (c *Conn) SendRequest(ctx context.Context, req *Request) error {
	if c.conn == nil {
		return errNotOpen
	}

	var body io.Reader
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if method == http.MethodPost {
		body = strings.NewReader(req.PostValues.Encode())
	}

	hreq, err := http.NewRequestWithContext(ctx, method, req.url(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	if req.UserAgent != "" {
		hreq.Header.Set("User-Agent", req.UserAgent)
	}
	if method == http.MethodPost {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	hreq.Close = true

	var wire bytes.Buffer
	if err := hreq.Write(&wire); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if c.opts.Verbose {
		head, _, _ := bytes.Cut(wire.Bytes(), []byte("\r\n\r\n"))
		c.logger.Debug("request", log.String("head", string(head)))
	}

	c.dataTimeout = req.DataTimeout
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.dataTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	stop := c.watch(ctx)
	defer stop()
	n, err := c.conn.Write(wire.Bytes())
	if err != nil {
		return ioError(ctx, "write request", err)
	}
	c.logger.Debug("request sent", log.Int("bytes", n))

	c.req = hreq
	c.br = bufio.NewReader(c.conn)
	return nil
}

// ReadReplyHeaders reads and parses the response status line and headers.
func (c *Conn) ReadReplyHeaders(ctx context.Context) (Reply, error) {
	if c.conn == nil {
		return Reply{}, errNotOpen
	}
	if c.req == nil {
		return Reply{}, errNotSent
	}

	if err := c.conn.SetReadDeadline(deadline(ctx, c.dataTimeout)); err != nil {
		return Reply{}, fmt.Errorf("set read deadline: %w", err)
	}
	stop := c.watch(ctx)
	defer stop()
	resp, err := http.ReadResponse(c.br, c.req)
	if err != nil {
		return Reply{}, ioError(ctx, "read reply headers", err)
	}
	c.resp = resp

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[lower(k)] = strings.Join(v, ", ")
	}
	c.logger.Debug("reply",
		log.String("status", resp.Status),
		log.String("proto", resp.Proto),
		log.Any("headers", headers),
	)

	return Reply{Status: resp.StatusCode, Proto: resp.Proto, Headers: headers}, nil
}

// ReadReplyBody reads up to max bytes of the response body. It returns an
// empty chunk and a nil error once the body is exhausted.
func (c *Conn) ReadReplyBody(ctx context.Context, max int) ([]byte, error) {
	if c.resp == nil {
		return nil, errNoReply
	}
	if max <= 0 {
		return nil, errBadMaxRead
	}
	if c.eof {
		return nil, nil
	}

	if err := c.conn.SetReadDeadline(deadline(ctx, c.dataTimeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	stop := c.watch(ctx)
	defer stop()

	buf := make([]byte, max)
	for {
		n, err := c.resp.Body.Read(buf)
		switch {
		case errors.Is(err, io.EOF):
			c.eof = true
			return buf[:n], nil
		case err != nil:
			return buf[:n], ioError(ctx, "read reply body", err)
		case n > 0:
			return buf[:n], nil
		}
	}
}

// Close releases the response body and the connection.
func (c *Conn) Close() error {
	var errs []error
	if c.resp != nil {
		errs = append(errs, c.resp.Body.Close())
		c.resp = nil
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
		c.conn = nil
		c.logger.Debug("connection closed")
	}
	c.br = nil
	c.req = nil
	return errors.Join(errs...)
}

// ioError wraps an I/O failure. When ctx is done the deadline forced by
// watch caused it, so ctx.Err() is reported instead of the timeout.
func ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// watch aborts in-flight I/O when ctx is cancelled.
func (c *Conn) watch(ctx context.Context) (stop func() bool) {
	conn := c.conn
	return context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
}

func (r *Request) url() string {
	scheme := "http"
	if r.Secure {
		scheme = "https"
	}
	host := r.HostName
	if (scheme == "http" && r.Port != defaultHTTPPort) || (scheme == "https" && r.Port != defaultHTTPSPort) {
		host = net.JoinHostPort(r.HostName, strconv.Itoa(r.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	uri := r.RequestURI
	if uri == "" {
		uri = "/"
	}
	return scheme + "://" + host + uri
}

// deadline returns the earlier of now+d and the context deadline.
// A zero time means no deadline.
func deadline(ctx context.Context, d time.Duration) time.Time {
	var t time.Time
	if d > 0 {
		t = time.Now().Add(d)
	}
	if dl, ok := ctx.Deadline(); ok && (t.IsZero() || dl.Before(t)) {
		t = dl
	}
	return t
}

func lower(s string) string {
	return strings.ToLower(s)
}

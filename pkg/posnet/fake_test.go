package posnet

import (
	"context"
	"sync"

	"github.com/bft-labs/posnet/pkg/log"
	"github.com/bft-labs/posnet/pkg/transport"
)

// fakeTransport scripts each pipeline step and records the calls it sees.
type fakeTransport struct {
	opts transport.Options

	argsErr    error
	openErr    error
	sendErr    error
	headersErr error
	bodyErr    error

	reply  transport.Reply
	chunks []string

	rawURL  string
	sent    transport.Request
	calls   []string
	closed  int
	maxRead int
}

func (f *fakeTransport) factory() TransportFactory {
	return func(opts transport.Options) transport.Transport {
		f.opts = opts
		return f
	}
}

func (f *fakeTransport) RequestArguments(rawURL string) (transport.Request, error) {
	f.calls = append(f.calls, "args")
	f.rawURL = rawURL
	if f.argsErr != nil {
		return transport.Request{}, f.argsErr
	}
	return transport.Request{
		Scheme:     "https",
		HostName:   "posnet.example.com",
		Port:       443,
		RequestURI: "/XML",
		Method:     "GET",
		Headers:    map[string]string{},
		Secure:     f.opts.Secure,
	}, nil
}

func (f *fakeTransport) Open(ctx context.Context, req *transport.Request) error {
	f.calls = append(f.calls, "open")
	return f.openErr
}

func (f *fakeTransport) SendRequest(ctx context.Context, req *transport.Request) error {
	f.calls = append(f.calls, "send")
	f.sent = *req
	return f.sendErr
}

func (f *fakeTransport) ReadReplyHeaders(ctx context.Context) (transport.Reply, error) {
	f.calls = append(f.calls, "headers")
	return f.reply, f.headersErr
}

func (f *fakeTransport) ReadReplyBody(ctx context.Context, max int) ([]byte, error) {
	f.calls = append(f.calls, "body")
	f.maxRead = max
	if len(f.chunks) == 0 {
		return nil, f.bodyErr
	}
	chunk := f.chunks[0]
	f.chunks = f.chunks[1:]
	return []byte(chunk), nil
}

func (f *fakeTransport) Close() error {
	f.calls = append(f.calls, "close")
	f.closed++
	return nil
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) add(level, msg string, fields []log.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg, fields: log.Fields(fields...)})
}

func (r *recordingLogger) Debug(msg string, fields ...log.Field) { r.add("debug", msg, fields) }
func (r *recordingLogger) Info(msg string, fields ...log.Field)  { r.add("info", msg, fields) }
func (r *recordingLogger) Warn(msg string, fields ...log.Field)  { r.add("warn", msg, fields) }
func (r *recordingLogger) Error(msg string, fields ...log.Field) { r.add("error", msg, fields) }

func (r *recordingLogger) find(msg string) (logEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func (r *recordingLogger) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

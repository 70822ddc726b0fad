package posnet

// ErrorKind identifies the pipeline step that failed.
type ErrorKind int

const (
	// KindNone marks a successful send or an error set through SetError.
	KindNone ErrorKind = iota
	// ConnectFailed covers URL resolution and connection setup.
	ConnectFailed
	SendFailed
	ReadHeadersFailed
	ReadBodyFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case ConnectFailed:
		return "connect_failed"
	case SendFailed:
		return "send_failed"
	case ReadHeadersFailed:
		return "read_headers_failed"
	case ReadBodyFailed:
		return "read_body_failed"
	default:
		return "unknown"
	}
}

// Error is returned by Send. Msg is the transport's error text, unchanged.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Msg: err.Error(), Err: err}
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrSendFailed)
// works for any send failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConnectFailed     = &Error{Kind: ConnectFailed}
	ErrSendFailed        = &Error{Kind: SendFailed}
	ErrReadHeadersFailed = &Error{Kind: ReadHeadersFailed}
	ErrReadBodyFailed    = &Error{Kind: ReadBodyFailed}
)

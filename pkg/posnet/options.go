package posnet

import (
	"crypto/tls"
	"time"

	"github.com/bft-labs/posnet/pkg/log"
	"github.com/bft-labs/posnet/pkg/transport"
)

// TransportFactory builds the transport used for a single Send.
type TransportFactory func(opts transport.Options) transport.Transport

// Observer is notified once per Send with the failing step, or KindNone.
type Observer interface {
	ObserveSend(method Method, kind ErrorKind, took time.Duration)
}

// Option configures optional behavior of a Connector.
type Option func(*Connector)

// WithLogger sets the logger used when the debug level is above zero.
// If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransportFactory replaces the default net-based transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Connector) {
		if f != nil {
			c.newTransport = f
		}
	}
}

// WithMethod sets the initial HTTP method.
func WithMethod(m Method) Option {
	return func(c *Connector) {
		c.SetMethod(m)
	}
}

// WithDebugLevel sets the initial debug level.
func WithDebugLevel(level int) Option {
	return func(c *Connector) {
		c.SetDebugLevel(level)
	}
}

// WithTLSConfig sets the TLS configuration used for secure connections,
// e.g. to pin the gateway's CA.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Connector) {
		c.tlsConfig = cfg
	}
}

// WithObserver registers an observer for send outcomes.
func WithObserver(o Observer) Option {
	return func(c *Connector) {
		c.observer = o
	}
}

func defaultTransportFactory(opts transport.Options) transport.Transport {
	return transport.New(opts)
}

// Package log provides the logging abstraction used by the posnet connector,
// its transport and the CLI.
//
// The connector never talks to a global logger. A Logger is injected at
// construction time and the connector decides, based on its debug level,
// whether to emit anything at all.
//
// # Usage
//
// Console output through zerolog:
//
//	logger := log.NewZerologAdapter()
//
// JSON output to an arbitrary writer:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stdout))
//
// Silence everything (the default when no logger is supplied):
//
//	logger := log.NewNoopLogger()
//
// # Custom Loggers
//
// Any type with Debug, Info, Warn and Error methods taking a message and
// a list of Field values satisfies Logger.
package log

package log

// Logger receives protocol events. Implementations are called from the
// connection reader and from the session, possibly concurrently.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls fn(event).
func (fn LoggerFunc) Log(event Event) { fn(event) }

// NoopLogger drops every event.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

var (
	_ Logger = LoggerFunc(nil)
	_ Logger = NoopLogger{}
)

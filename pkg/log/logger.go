package log

// Logger receives protocol events from the engine. Pass NoopLogger (or
// nil where the engine tolerates it) to disable logging.
type Logger interface {
	// Log records a protocol event. Implementations must be safe for
	// concurrent use and should return quickly; the engine calls Log
	// from its single pump goroutine.
	Log(event Event)
}

// NoopLogger discards all events. Usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// FuncLogger adapts a function to the Logger interface. Handy in tests.
type FuncLogger func(Event)

// Log invokes the function.
func (f FuncLogger) Log(e Event) { f(e) }

var (
	_ Logger = NoopLogger{}
	_ Logger = FuncLogger(nil)
)

package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/miele-backoffice/internal/sysutil"
)

// SetupLogging configures the global zerolog logger: level, UTC RFC3339Nano
// timestamps, a console writer when pretty, and the service/version fields on
// every line. out defaults to stderr.
func SetupLogging(out io.Writer, level string, pretty bool, service, version string) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	sysutil.SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	l := zerolog.New(out).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
	log.Logger = l
	return l
}

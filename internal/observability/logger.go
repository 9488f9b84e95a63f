package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/simbridge/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the application logger and installs it as the
// global zerolog logger. Color output honors the same env override as
// the logging profiles.
func InitLogger(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		NoColor:    consoleNoColor(),
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

func consoleNoColor() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(logging.EnvLogNoColor)))
	return err == nil && v
}

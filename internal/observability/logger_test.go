package observability

import (
	"testing"

	"github.com/danmuck/simbridge/internal/logging"
	"github.com/danmuck/simbridge/internal/testutil/testlog"
)

func TestConsoleNoColorEnvOverride(t *testing.T) {
	testlog.Start(t)

	t.Setenv(logging.EnvLogNoColor, "")
	if consoleNoColor() {
		t.Fatalf("unset env must keep color enabled")
	}

	t.Setenv(logging.EnvLogNoColor, "true")
	if !consoleNoColor() {
		t.Fatalf("env override not honored")
	}

	t.Setenv(logging.EnvLogNoColor, "not-a-bool")
	if consoleNoColor() {
		t.Fatalf("malformed override must keep color enabled")
	}
}

func TestInitLoggerTagsApp(t *testing.T) {
	testlog.Start(t)

	t.Setenv(logging.EnvLogNoColor, "true")
	logger := InitLogger("simbridged")
	logger.Debug().Msg("logger initialized")
}

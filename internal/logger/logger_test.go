package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBufferedLogger builds a logger with the production encoder writing to buf
func newBufferedLogger(t *testing.T, buf *bytes.Buffer) *zap.Logger {
	t.Helper()

	config, err := buildConfig("production", "debug")
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(config.EncoderConfig),
		zapcore.AddSync(buf),
		config.Level,
	)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}

// Feature: wtb-catalog, Property 4: Production logs are structured JSON
func TestProperty_LogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every entry is a JSON object carrying level, timestamp, message and fields", prop.ForAll(
		func(message string, sku string, level string) bool {
			var buf bytes.Buffer
			logger := newBufferedLogger(t, &buf)

			fields := []zap.Field{zap.String("sku", sku), zap.Int("page", 3)}
			switch level {
			case "debug":
				logger.Debug(message, fields...)
			case "warn":
				logger.Warn(message, fields...)
			case "error":
				logger.Error(message, fields...)
			default:
				logger.Info(message, fields...)
			}
			logger.Sync()

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}

			if entry["level"] != level || entry["msg"] != message || entry["sku"] != sku {
				return false
			}
			if _, ok := entry["ts"]; !ok {
				return false
			}
			if level == "error" {
				_, hasStack := entry["stacktrace"]
				return hasStack
			}
			return true
		},
		gen.AnyString(),
		gen.RegexMatch(`[A-Z]{2}[0-9]{4}-[0-9]{3}`),
		gen.OneConstOf("debug", "info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNew_ProductionAndDevelopment(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := New(env, "")
		if err != nil {
			t.Fatalf("Failed to create %s logger: %v", env, err)
		}
		if logger == nil {
			t.Fatalf("%s logger should not be nil", env)
		}
		logger.Sync()
	}
}

func TestBuildConfig(t *testing.T) {
	prod, err := buildConfig("production", "")
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}
	if prod.Encoding != "json" {
		t.Errorf("production encoding = %q, want json", prod.Encoding)
	}
	if len(prod.OutputPaths) != 1 || prod.OutputPaths[0] != "stdout" {
		t.Errorf("production output = %v, want [stdout]", prod.OutputPaths)
	}

	dev, err := buildConfig("development", "")
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}
	if dev.Encoding != "console" {
		t.Errorf("development encoding = %q, want console", dev.Encoding)
	}
	if !dev.Level.Enabled(zapcore.DebugLevel) {
		t.Error("development should log debug")
	}
}

func TestNew_LevelOverride(t *testing.T) {
	logger, err := New("production", "warn")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled when level is warn")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled when level is warn")
	}

	if _, err := New("production", "loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNewWithFallback(t *testing.T) {
	logger := NewWithFallback("production", "not-a-level")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Fallback logger should log info")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Fallback logger should keep the production default level")
	}

	logger = NewWithFallback("production", "debug")
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("A valid level should be applied")
	}
}

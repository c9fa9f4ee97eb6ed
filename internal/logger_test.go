package internal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLogLevel(t *testing.T) {
	originalLevel := logLevel
	defer SetLogLevel(originalLevel)

	SetLogLevel(LogLevelDebug)
	if logLevel != LogLevelDebug {
		t.Errorf("SetLogLevel() logLevel = %v, want LogLevelDebug", logLevel)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("logger level = %v, want debug", logger.GetLevel())
	}

	SetLogLevel(LogLevelError)
	if logLevel != LogLevelError {
		t.Errorf("SetLogLevel() logLevel = %v, want LogLevelError", logLevel)
	}
	if logger.GetLevel() != logrus.ErrorLevel {
		t.Errorf("logger level = %v, want error", logger.GetLevel())
	}
}

func TestSetVerbose(t *testing.T) {
	originalLevel := logLevel
	defer SetLogLevel(originalLevel)

	SetVerbose(true)
	if logLevel != LogLevelDebug {
		t.Errorf("SetVerbose(true) logLevel = %v, want LogLevelDebug", logLevel)
	}

	SetVerbose(false)
	if logLevel != LogLevelInfo {
		t.Errorf("SetVerbose(false) logLevel = %v, want LogLevelInfo", logLevel)
	}
}

func TestLogFunctions(t *testing.T) {
	originalLevel := logLevel
	defer SetLogLevel(originalLevel)
	defer SetLogOutput(logger.Out)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogLevel(LogLevelWarn)

	LogError("test error message")
	LogWarn("test warning message")
	LogInfo("test info message")
	LogDebug("test debug message")

	output := buf.String()
	for _, want := range []string{"test error message", "test warning message"} {
		if !strings.Contains(output, want) {
			t.Errorf("log output should contain %q, got: %q", want, output)
		}
	}
	for _, hidden := range []string{"test info message", "test debug message"} {
		if strings.Contains(output, hidden) {
			t.Errorf("log output should not contain %q at warn level", hidden)
		}
	}
}

func TestWithSession(t *testing.T) {
	defer SetLogOutput(logger.Out)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	withSession("sess-1").Warn("late answer")

	if !strings.Contains(buf.String(), "session_id=sess-1") {
		t.Errorf("entry should carry the session id, got: %q", buf.String())
	}
}

func TestSetLogJSON(t *testing.T) {
	defer SetLogOutput(logger.Out)
	defer SetLogJSON(false)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogJSON(true)
	withSession("sess-json").Warn("structured")

	if !strings.Contains(buf.String(), `"session_id":"sess-json"`) {
		t.Errorf("JSON entry should carry the session id, got: %q", buf.String())
	}
}

func TestLogLevels(t *testing.T) {
	if LogLevelError >= LogLevelWarn {
		t.Error("LogLevelError should be less than LogLevelWarn")
	}
	if LogLevelWarn >= LogLevelInfo {
		t.Error("LogLevelWarn should be less than LogLevelInfo")
	}
	if LogLevelInfo >= LogLevelDebug {
		t.Error("LogLevelInfo should be less than LogLevelDebug")
	}
}

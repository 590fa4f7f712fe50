package wikilog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestLogger(buf *bytes.Buffer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return l
}

func TestContextLogger_FieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	cl := NewContextLogger(newTestLogger(&buf), map[string]interface{}{"stage": "extract"})

	cl.Info("starting dump")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["stage"] != "extract" {
		t.Errorf("stage field = %v, want extract", entry["stage"])
	}
	if entry["msg"] != "starting dump" {
		t.Errorf("msg field = %v, want %q", entry["msg"], "starting dump")
	}
}

func TestContextLogger_WithFieldsMerges(t *testing.T) {
	var buf bytes.Buffer
	base := NewContextLogger(newTestLogger(&buf), map[string]interface{}{"stage": "extract"})
	derived := base.WithFields(map[string]interface{}{"worker": 3})

	derived.Warn("slow batch")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["stage"] != "extract" || entry["worker"] != float64(3) {
		t.Errorf("expected both base and derived fields present, got %v", entry)
	}
}

func TestContextLogger_WithErrorAddsErrorField(t *testing.T) {
	var buf bytes.Buffer
	cl := NewContextLogger(newTestLogger(&buf), nil)
	cl.WithError(errTest{}).Error("load failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["error"] != "boom" {
		t.Errorf("error field = %v, want boom", entry["error"])
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }

func TestOutputSplitter_RoutesErrorLevelToStderr(t *testing.T) {
	var splitter OutputSplitter
	errorLine := []byte(`level=error msg="bad thing" time="now"` + "\n")
	infoLine := []byte(`level=info msg="fine" time="now"` + "\n")

	if !looksLikeErrorLine(errorLine) {
		t.Error("expected an error-level line to be detected")
	}
	if looksLikeErrorLine(infoLine) {
		t.Error("expected an info-level line not to be detected as error")
	}
	_ = splitter
}

func TestNew_FormatSelection(t *testing.T) {
	jsonLogger := New(Config{Level: LevelDebug, Format: "json"})
	if _, ok := jsonLogger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSONFormatter, got %T", jsonLogger.Formatter)
	}

	textLogger := New(Config{Level: LevelWarn, Format: "text"})
	if _, ok := textLogger.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("expected TextFormatter, got %T", textLogger.Formatter)
	}
	if textLogger.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want WarnLevel", textLogger.GetLevel())
	}
}

func TestLogDuration(t *testing.T) {
	var buf bytes.Buffer
	cl := NewContextLogger(newTestLogger(&buf), nil)

	done := LogDuration(cl, "flush")
	done()

	if !strings.Contains(buf.String(), `"operation":"flush"`) {
		t.Errorf("expected operation field in log output, got %s", buf.String())
	}
}

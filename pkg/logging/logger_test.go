package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func resetLogger(buf *bytes.Buffer) {
	Logger = logrus.New()
	Logger.SetOutput(buf)
	Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

func TestInit_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"bogus", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Logger = logrus.New()
			if err := Init(tt.level, ""); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if Logger.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", Logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestInit_CreatesNestedLogFile(t *testing.T) {
	Logger = logrus.New()
	logFile := filepath.Join(t.TempDir(), "a", "b", "faceadmin.log")

	if err := Init("info", logFile); err != nil {
		t.Fatalf("Init with log file failed: %v", err)
	}
	Info("written to file")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing message, got %q", string(data))
	}
}

func TestSetLevel_IgnoresUnknown(t *testing.T) {
	Logger = logrus.New()
	SetLevel("warn")
	SetLevel("loud")
	if Logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected warn level to be kept, got %v", Logger.GetLevel())
	}
}

func TestSetFormat_JSON(t *testing.T) {
	var buf bytes.Buffer
	resetLogger(&buf)
	SetFormat("json")

	Component("storage").WithField("admin_id", 7).Info("saved")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "storage" {
		t.Errorf("component = %v, want storage", entry["component"])
	}
	if entry["msg"] != "saved" {
		t.Errorf("msg = %v, want saved", entry["msg"])
	}

	SetFormat("text")
	if _, ok := Logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("expected text formatter after SetFormat(text), got %T", Logger.Formatter)
	}
}

func TestHelpers_RespectLevel(t *testing.T) {
	var buf bytes.Buffer
	resetLogger(&buf)
	Logger.SetLevel(logrus.ErrorLevel)

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below error level, got %q", buf.String())
	}

	WithError(os.ErrNotExist).Errorf("load %s", "admins")
	out := buf.String()
	if !strings.Contains(out, "load admins") || !strings.Contains(out, "file does not exist") {
		t.Errorf("error entry incomplete: %q", out)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	resetLogger(&buf)

	WithFields(Fields{"admin_id": 3, "outcome": "SUCCESS"}).Info("authentication finished")

	out := buf.String()
	for _, want := range []string{"admin_id=3", "outcome=SUCCESS", "authentication finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func BenchmarkComponentInfof(b *testing.B) {
	Logger = logrus.New()
	Logger.SetOutput(&bytes.Buffer{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Component("auth").Infof("frame %d", i)
	}
}

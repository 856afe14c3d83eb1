package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	for _, c := range []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	} {
		t.Run(c.in, func(t *testing.T) {
			got, err := parseLevel(c.in)
			if (err != nil) != c.wantErr {
				t.Fatalf("err = %v", err)
			}
			if err == nil && got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	defer SetLogger(nil)
	path := filepath.Join(t.TempDir(), "rdbconv.log")
	if err := InitWithFileConfig("info", DefaultFileConfig(path), false); err != nil {
		t.Fatal(err)
	}
	Debug("hidden")
	Warn("degenerate joint", zap.Int("joint", 3))
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if strings.Contains(s, "hidden") {
		t.Error("debug message written at info level")
	}
	if !strings.Contains(s, `"msg":"degenerate joint"`) || !strings.Contains(s, `"joint":3`) {
		t.Error("unexpected log: ", s)
	}
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	Info("ignored")
	Warn("kept")
	if logs.Len() != 1 || logs.All()[0].Message != "kept" {
		t.Error("observed: ", logs.All())
	}
}

package cloth

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDefaultLogger_Levels(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	l := NewDefaultLoggerTo(out, errOut, "cloth", LevelInfo)

	l.Debugf("hidden %d", 1)
	l.Infof("built %dx%d", 4, 3)
	l.Warnf("slow")
	l.Errorf("diverged at %d", 7)

	if strings.Contains(out.String(), "hidden") {
		t.Errorf("debug line written while debug is off: %q", out.String())
	}
	if !strings.Contains(out.String(), "[cloth] INFO: built 4x3") {
		t.Errorf("missing info line: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[cloth] WARN: slow") || !strings.Contains(errOut.String(), "[cloth] ERROR: diverged at 7") {
		t.Errorf("missing warn or error line: %q", errOut.String())
	}

	l.SetDebug(true)
	if !l.DebugEnabled() {
		t.Errorf("Expected debug to be enabled")
	}
	l.Debugf("shown")
	if !strings.Contains(out.String(), "[cloth] DEBUG: shown") {
		t.Errorf("missing debug line: %q", out.String())
	}

	l.SetLevel(LevelError)
	l.Warnf("muted")
	if strings.Contains(errOut.String(), "muted") {
		t.Errorf("warn line written at error level: %q", errOut.String())
	}
}

func TestDefaultLogger_FrameTag(t *testing.T) {
	out := &bytes.Buffer{}
	l := NewDefaultLoggerTo(out, out, "", LevelInfo)

	tagFrame(l, 12)
	l.Infof("stepped")
	tagFrame(l, -1)
	l.Infof("idle")

	if !strings.Contains(out.String(), "INFO frame=12: stepped") {
		t.Errorf("missing frame tag: %q", out.String())
	}
	if !strings.Contains(out.String(), "INFO: idle") {
		t.Errorf("frame tag not cleared: %q", out.String())
	}
	// Loggers without frame support are left alone.
	tagFrame(NewNopLogger(), 3)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"Warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for s, want := range cases {
		got, err := ParseLevel(s)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", s, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel, got %v", err)
	}
	if Level(0) != LevelInfo {
		t.Errorf("Expected the zero level to be info")
	}
}

func TestApp_Logger(t *testing.T) {
	var nilApp *App
	if nilApp.Logger() == nil {
		t.Errorf("Expected a no-op logger for a nil app")
	}

	app := NewAppBuilder().UseModule(LoggingModule{Prefix: "test"}).Build()
	l, ok := app.Logger().(*DefaultLogger)
	if !ok {
		t.Errorf("Expected the installed DefaultLogger, got %T", app.Logger())
	} else if l.DebugEnabled() {
		t.Errorf("Expected LoggingModule to default to info level")
	}
	if _, ok := NewAppBuilder().Build().Logger().(*nopLogger); !ok {
		t.Errorf("Expected a no-op logger without LoggingModule")
	}
}

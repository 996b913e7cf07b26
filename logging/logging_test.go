package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"DEBUG", zerolog.DebugLevel, true},
		{" warning ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"chatty", zerolog.InfoLevel, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseLevel(tc.in)
			if got != tc.want || ok != tc.ok {
				t.Fatal(got, ok)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "nope")

	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnv(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatal(cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatal("timestamp")
	}
	if cfg.NoColor {
		t.Fatal("unparsable value applied")
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	lg := New(Config{Level: zerolog.WarnLevel, JSON: true, Out: &buf})
	lg.Info().Msg("hidden")
	lg.Warn().Str("gobj", "C_TIMER^t").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal(out)
	}
	if !strings.Contains(out, `"gobj":"C_TIMER^t"`) || !strings.Contains(out, "shown") {
		t.Fatal(out)
	}
}

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestExtend(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	root := &Logger{logger: &zl}

	child := root.Extend(root.With().Str(UserField, "1").Str(GuildField, "g1"))
	child.Info().Msg("hi")
	root.Info().Msg("root")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if !strings.Contains(lines[0], `"u":"1"`) || !strings.Contains(lines[0], `"g":"g1"`) {
		t.Errorf("child fields are missing: %v", lines[0])
	}
	if strings.Contains(lines[1], `"u":`) {
		t.Errorf("parent got child fields: %v", lines[1])
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{TraceLevel, "trace"},
		{DebugLevel, "debug"},
		{Disabled, "disabled"},
		{Level(42), "42"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("expected %v, got %v", tt.want, got)
		}
	}
}

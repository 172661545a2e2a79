package message

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		tmpl string
		ph   map[string]string
		want string
	}{
		{"Combo x{combo}", map[string]string{"combo": "7"}, "Combo x7"},
		{"{a}{b}{a}", map[string]string{"a": "1", "b": "2"}, "121"},
		{"left {unknown}", map[string]string{"a": "1"}, "left {unknown}"},
		{"no placeholders", nil, "no placeholders"},
	}
	for _, tt := range tests {
		if got := Format(tt.tmpl, tt.ph); got != tt.want {
			t.Fatalf("Format(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestCatalogOverridesAndMissingKeys(t *testing.T) {
	c := NewCatalog(slog.New(slog.NewTextHandler(io.Discard, nil)), "[BP] ", map[string]string{
		"timer.started": "Go! {time}",
	})
	got := c.Chat("timer.started", map[string]string{"time": "5:00"})
	if !strings.Contains(got, "[BP] Go! 5:00") {
		t.Fatalf("unexpected chat text %q", got)
	}
	if plain := c.Plain("timer.started", map[string]string{"time": "5:00"}); strings.Contains(plain, "[BP]") {
		t.Fatalf("plain text must not carry the prefix: %q", plain)
	}
	if missing := c.Plain("does.not.exist", nil); !strings.Contains(missing, "does.not.exist") {
		t.Fatalf("missing key not reported: %q", missing)
	}
}

func TestPercentSurvivesColouring(t *testing.T) {
	c := NewCatalog(nil, "", map[string]string{"x": "100% {v}"})
	if got := c.Plain("x", map[string]string{"v": "50%"}); !strings.Contains(got, "100% 50%") {
		t.Fatalf("percent signs mangled: %q", got)
	}
	if got := c.Plain("access.denied", nil); !strings.Contains(got, "\u00a7c") || strings.Contains(got, "<red>") {
		t.Fatalf("colour tags not applied: %q", got)
	}
}

func TestDefaultsCoverSentKeys(t *testing.T) {
	for _, key := range []string{
		"timer.started", "timer.warning", "timer.action-bar-enhanced", "timer.ended", "timer.ended-item-removed",
		"combo.increment", "combo.milestone", "combo.warning", "combo.expired",
		"access.granted", "access.already-active", "access.denied", "access.cannot-drop", "access.cannot-transfer",
		"mining.no-active-session", "mining.block-regenerate", "reward.received", "reward.key-message",
	} {
		if _, ok := Defaults[key]; !ok {
			t.Fatalf("no default for %q", key)
		}
	}
}

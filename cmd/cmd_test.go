package cmd

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCommandRegistration(t *testing.T) {
	want := map[string]bool{
		"serve":   false,
		"ask":     false,
		"search":  false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestSearchFlags(t *testing.T) {
	f := searchCmd.Flags().Lookup("max-results")
	if f == nil {
		t.Fatal("search command is missing the max-results flag")
	}
	if f.Shorthand != "n" {
		t.Errorf("max-results shorthand = %q, want n", f.Shorthand)
	}
}

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/gembooth/internal/modes"
)

func TestPrintModesPlain(t *testing.T) {
	var buf bytes.Buffer
	if err := printModes(&buf, false); err != nil {
		t.Fatalf("printModes returned error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(modes.List()) {
		t.Fatalf("Expected %d lines, got %d", len(modes.List()), len(lines))
	}
	if !strings.HasPrefix(lines[0], "cartoon\t") {
		t.Errorf("Expected cartoon first, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[len(lines)-1], "custom\t") {
		t.Errorf("Expected custom last, got %q", lines[len(lines)-1])
	}
}

func TestPrintModesTable(t *testing.T) {
	var buf bytes.Buffer
	if err := printModes(&buf, true); err != nil {
		t.Fatalf("printModes returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"19century", "(user supplied)", "╭"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected table to contain %q", want)
		}
	}
}

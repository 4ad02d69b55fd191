package modes

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestListOrder(t *testing.T) {
	list := List()

	expected := []string{"cartoon", "banana", "80s", "19century", "anime", "beard", "comic", "old", "baby", "emperor", "custom"}
	if len(list) != len(expected) {
		t.Fatalf("Expected %d modes, got %d", len(expected), len(list))
	}
	for i, name := range expected {
		if list[i].Key.String() != name {
			t.Errorf("Expected mode %d to be %s, got %s", i, name, list[i].Key)
		}
		if list[i].Name == "" || list[i].Emoji == "" {
			t.Errorf("Expected mode %s to have a name and emoji", name)
		}
	}

	// callers get their own copy
	list[0].Instruction = "changed"
	if List()[0].Instruction == "changed" {
		t.Error("Expected List to return a fresh slice")
	}
}

func TestInstruction(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		custom   string
		expected string
	}{
		{
			name:     "catalog mode ignores custom text",
			key:      Banana,
			custom:   "something else",
			expected: "Make the person in the photo wear a banana costume.",
		},
		{
			name:     "custom mode returns custom text",
			key:      Custom,
			custom:   "Make it look like a watercolor",
			expected: "Make it look like a watercolor",
		},
		{
			name:     "custom mode allows empty text",
			key:      Custom,
			custom:   "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Instruction(tt.key, tt.custom); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestEveryCatalogModeHasInstruction(t *testing.T) {
	for _, m := range List() {
		if m.Key == Custom {
			continue
		}
		if m.Instruction == "" {
			t.Errorf("Expected instruction for %s", m.Key)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		input   string
		want    Key
		wantErr bool
	}{
		{input: "cartoon", want: Cartoon},
		{input: "80s", want: Eighties},
		{input: "19century", want: NineteenthCentury},
		{input: "custom", want: Custom},
		{input: "Cartoon", wantErr: true},
		{input: "", wantErr: true},
		{input: "vaporwave", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownMode) {
					t.Errorf("Expected ErrUnknownMode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestKeyJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Key{"mode": Eighties})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"mode":"80s"}` {
		t.Errorf("Expected {\"mode\":\"80s\"}, got %s", data)
	}

	var decoded struct {
		Mode Key `json:"mode"`
	}
	if err := json.Unmarshal([]byte(`{"mode":"beard"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Mode != Beard {
		t.Errorf("Expected Beard, got %v", decoded.Mode)
	}

	if err := json.Unmarshal([]byte(`{"mode":"nope"}`), &decoded); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestInvalidKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for out of range key")
		}
	}()
	Instruction(numKeys, "")
}

package modes

import (
	"errors"
	"fmt"
)

// ErrUnknownMode is returned when a mode name does not match any Key.
var ErrUnknownMode = errors.New("unknown mode")

// Key identifies a transformation mode. The set of keys is closed: the only
// valid values are the constants declared below.
type Key uint8

const (
	Cartoon Key = iota
	Banana
	Eighties
	NineteenthCentury
	Anime
	Beard
	Comic
	Old
	Baby
	Emperor
	Custom

	numKeys
)

// Mode is a named transformation instruction.
type Mode struct {
	Key         Key    `json:"key"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Instruction string `json:"instruction"`
}

var catalog = [numKeys]struct {
	name        string
	displayName string
	emoji       string
	instruction string
}{
	Cartoon: {"cartoon", "Cartoon", "😃",
		"Transform this image into a cute simple cartoon. Use minimal lines and solid colors."},
	Banana: {"banana", "Banana", "🍌",
		"Make the person in the photo wear a banana costume."},
	Eighties: {"80s", "80s", "✨",
		"Make the person in the photo look like a 1980s yearbook photo. Feel free to change the hairstyle and clothing."},
	NineteenthCentury: {"19century", "19th Cent.", "🎩",
		"Make the photo look like a 19th century daguerreotype. Feel free to change the background to make it period appropriate and add props like Victorian clothing. Try to keep the perspective the same."},
	Anime: {"anime", "Anime", "🍣",
		"Make the person in the photo look like a photorealistic anime character with exaggerated features."},
	Beard: {"beard", "Big Beard", "🧔🏻",
		"Make the person in the photo look like they have a huge beard."},
	Comic: {"comic", "Comic Book", "💥",
		"Transform the photo into a comic book panel with bold outlines, halftone dots, and speech bubbles."},
	Old: {"old", "Old", "👵🏻",
		"Make the person in the photo look extremely old."},
	Baby: {"baby", "Baby", "👶",
		"Make the person in the photo look like a baby sucking a baby pacifier."},
	Emperor: {"emperor", "Emperor", "👑",
		"Make the person in the photo look like an emperor in a chinese movie about the Tang dynasty."},
	Custom: {"custom", "Custom", "✏️", ""},
}

// Default returns the mode a new session starts in.
func Default() Key {
	return Cartoon
}

// List returns every mode, catalog modes first and Custom last.
// The custom entry carries an empty instruction; use Instruction to resolve it.
func List() []Mode {
	out := make([]Mode, 0, numKeys)
	for k := Key(0); k < numKeys; k++ {
		out = append(out, Lookup(k))
	}
	return out
}

// Lookup returns the catalog entry for k.
func Lookup(k Key) Mode {
	k.mustBeValid()
	c := catalog[k]
	return Mode{Key: k, Name: c.displayName, Emoji: c.emoji, Instruction: c.instruction}
}

// Instruction resolves the text sent to the model for k. For Custom the
// user-supplied text is returned as is, even when empty.
func Instruction(k Key, customText string) string {
	k.mustBeValid()
	if k == Custom {
		return customText
	}
	return catalog[k].instruction
}

// ParseKey converts a mode name such as "cartoon" or "80s" into a Key.
func ParseKey(s string) (Key, error) {
	for k := Key(0); k < numKeys; k++ {
		if catalog[k].name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// String returns the mode name used on the wire.
func (k Key) String() string {
	if k >= numKeys {
		return fmt.Sprintf("Key(%d)", uint8(k))
	}
	return catalog[k].name
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	if k >= numKeys {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, uint8(k))
	}
	return []byte(catalog[k].name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Key) mustBeValid() {
	if k >= numKeys {
		panic(fmt.Sprintf("modes: invalid key %d", uint8(k)))
	}
}

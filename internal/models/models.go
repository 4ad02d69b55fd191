package models

import (
	"encoding/json"
	"fmt"

	"github.com/lehigh-university-libraries/gembooth/internal/modes"
)

// Status is the processing state of a captured photo
type Status uint8

const (
	StatusBusy Status = iota
	StatusDone
	StatusFailed
	// StatusRemoved is only reported on task results for photos deleted
	// before their outcome arrived. No stored photo carries it.
	StatusRemoved
)

var statusNames = [...]string{
	StatusBusy:    "busy",
	StatusDone:    "done",
	StatusFailed:  "failed",
	StatusRemoved: "removed",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Photo is the status entry for one captured frame. Image bytes live in the
// payload store, keyed by ID.
type Photo struct {
	ID     string    `json:"id"`
	Mode   modes.Key `json:"mode"`
	Status Status    `json:"status"`
}

// IsBusy reports whether the photo's transformation is still outstanding
func (p Photo) IsBusy() bool {
	return p.Status == StatusBusy
}

// MarshalJSON adds the derived is_busy flag expected by the UI
func (p Photo) MarshalJSON() ([]byte, error) {
	type photo Photo
	return json.Marshal(struct {
		photo
		IsBusy bool `json:"is_busy"`
	}{photo(p), p.IsBusy()})
}

// Payload is an encoded image and its MIME type
type Payload struct {
	Data     []byte
	MIMEType string
}

// SessionState is a read snapshot of one photobooth session
type SessionState struct {
	ID                string    `json:"id"`
	ActiveMode        modes.Key `json:"active_mode"`
	CustomInstruction string    `json:"custom_instruction"`
	Photos            []Photo   `json:"photos"`
}

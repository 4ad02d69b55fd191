package storage

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/modes"
)

var (
	// ErrNotFound means the photo is not (or no longer) in the store.
	ErrNotFound = errors.New("photo not found")
	// ErrNotBusy means the photo already has its outcome.
	ErrNotBusy = errors.New("photo is not busy")
)

// PhotoStore is the ordered collection of photo records of one session plus
// their image payloads.
//
// A PhotoStore is not safe for concurrent use. It must be owned by a single
// goroutine; see session.Session.
type PhotoStore struct {
	photos   []models.Photo // newest first
	payloads *Payloads
	// issued holds every ID ever handed out, removed photos included
	issued map[string]struct{}
	newID  func() string
}

func NewPhotoStore() *PhotoStore {
	return &PhotoStore{
		payloads: NewPayloads(),
		issued:   make(map[string]struct{}),
		newID:    uuid.NewString,
	}
}

// Capture records a new busy photo at the front of the sequence and returns
// its ID. IDs are never reused, not even after the photo is removed.
func (s *PhotoStore) Capture(input models.Payload, mode modes.Key) string {
	id := s.newID()
	for {
		if _, taken := s.issued[id]; !taken {
			break
		}
		id = s.newID()
	}
	s.issued[id] = struct{}{}

	s.payloads.setInput(id, input)
	s.photos = append(s.photos, models.Photo{})
	copy(s.photos[1:], s.photos)
	s.photos[0] = models.Photo{ID: id, Mode: mode, Status: models.StatusBusy}
	return id
}

// Complete stores the transformed output of a busy photo and marks it done.
func (s *PhotoStore) Complete(id string, output models.Payload) error {
	i, err := s.busyIndex(id)
	if err != nil {
		return err
	}
	s.payloads.setOutput(id, output)
	s.photos[i].Status = models.StatusDone
	return nil
}

// Fail marks a busy photo as terminally failed. No output is stored.
func (s *PhotoStore) Fail(id string) error {
	i, err := s.busyIndex(id)
	if err != nil {
		return err
	}
	s.photos[i].Status = models.StatusFailed
	return nil
}

// Remove deletes the photo and its payloads whatever its status.
func (s *PhotoStore) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.photos = append(s.photos[:i], s.photos[i+1:]...)
	s.payloads.delete(id)
	return true
}

// List returns a copy of the sequence, newest first.
func (s *PhotoStore) List() []models.Photo {
	out := make([]models.Photo, len(s.photos))
	copy(out, s.photos)
	return out
}

func (s *PhotoStore) Get(id string) (models.Photo, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return models.Photo{}, false
	}
	return s.photos[i], true
}

func (s *PhotoStore) Len() int {
	return len(s.photos)
}

func (s *PhotoStore) Input(id string) (models.Payload, bool) {
	return s.payloads.Input(id)
}

func (s *PhotoStore) Output(id string) (models.Payload, bool) {
	return s.payloads.Output(id)
}

func (s *PhotoStore) busyIndex(id string) (int, error) {
	i := s.indexOf(id)
	if i < 0 {
		return -1, ErrNotFound
	}
	if !s.photos[i].IsBusy() {
		return -1, ErrNotBusy
	}
	return i, nil
}

func (s *PhotoStore) indexOf(id string) int {
	for i := range s.photos {
		if s.photos[i].ID == id {
			return i
		}
	}
	return -1
}

// Package session runs the photo lifecycle of one photobooth session: it owns
// the photo store, the active mode and the custom instruction, and drives
// each captured photo through its transformation.
//
// All state is owned by a single loop goroutine. Triggers, reads and
// transformation outcomes are handed to that goroutine as operations, so the
// store never sees concurrent mutation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/gembooth/internal/images"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/modes"
	"github.com/lehigh-university-libraries/gembooth/internal/providers"
	"github.com/lehigh-university-libraries/gembooth/internal/storage"
)

// ErrClosed is returned by triggers on a closed session
var ErrClosed = errors.New("session closed")

// Options configures a Session
type Options struct {
	// ID defaults to a random UUID
	ID          string
	Transformer providers.Transformer
	// Model is passed through to the transformer
	Model string
	// Timeout bounds each transformation call. Zero disables it.
	Timeout time.Duration
	// MaxInFlight bounds concurrent transformation calls. Zero means no bound.
	MaxInFlight int
}

type state struct {
	store  *storage.PhotoStore
	mode   modes.Key
	custom string
	closed bool
}

// Session is an independent photobooth session
type Session struct {
	id          string
	transformer providers.Transformer
	model       string
	timeout     time.Duration
	slots       chan struct{}

	st      state
	ops     chan func(*state)
	stop    chan struct{}
	stopped chan struct{}

	// lastActive is the UnixNano time of the last operation
	lastActive atomic.Int64

	// ctx is handed to transformation calls and cancelled on Close
	ctx       context.Context
	cancel    context.CancelFunc
	tasks     sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New starts a session. Close must be called to release it.
func New(opts Options) *Session {
	if opts.Transformer == nil {
		panic("session: nil Transformer")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          id,
		transformer: opts.Transformer,
		model:       opts.Model,
		timeout:     opts.Timeout,
		st: state{
			store: storage.NewPhotoStore(),
			mode:  modes.Default(),
		},
		ops:     make(chan func(*state)),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	if opts.MaxInFlight > 0 {
		s.slots = make(chan struct{}, opts.MaxInFlight)
	}
	s.lastActive.Store(time.Now().UnixNano())

	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case op := <-s.ops:
			op(&s.st)
		case <-s.stop:
			return
		}
	}
}

// do runs op on the loop goroutine and waits for it. It must never be called
// from inside an op.
func (s *Session) do(op func(*state)) error {
	s.lastActive.Store(time.Now().UnixNano())
	done := make(chan struct{})
	select {
	case s.ops <- func(st *state) {
		defer close(done)
		op(st)
	}:
	case <-s.stopped:
		return ErrClosed
	}
	<-done
	return nil
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// LastActive is the time of the last trigger, read or transformation outcome
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Snap captures input under the active mode and starts its transformation.
// The returned Task resolves after the outcome has been written to the store.
func (s *Session) Snap(input models.Payload) (*Task, error) {
	if len(input.Data) == 0 {
		return nil, images.ErrEmptyInput
	}

	var (
		task   *Task
		req    providers.Request
		closed bool
	)
	err := s.do(func(st *state) {
		if st.closed {
			closed = true
			return
		}
		id := st.store.Capture(input, st.mode)
		req = providers.Request{
			Model:       s.model,
			Instruction: modes.Instruction(st.mode, st.custom),
			Input:       input,
		}
		task = newTask(id)
		s.tasks.Add(1)
		slog.Info("Photo captured", "session_id", s.id, "photo_id", id, "mode", st.mode, "bytes", len(input.Data))
	})
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrClosed
	}

	go s.transform(task, req)
	return task, nil
}

func (s *Session) transform(task *Task, req providers.Request) {
	defer s.tasks.Done()

	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			s.finish(task, models.Payload{}, fmt.Errorf("failed to start transformation: %w", s.ctx.Err()))
			return
		}
	}

	var (
		out models.Payload
		err error
	)
	if s.exists(task.id) {
		out, err = s.call(req)
	} else {
		// removed while waiting for a slot; the call was never started
		err = storage.ErrNotFound
	}

	if s.slots != nil {
		<-s.slots
	}
	s.finish(task, out, err)
}

func (s *Session) call(req providers.Request) (out models.Payload, err error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transformer panicked: %v", r)
		}
	}()

	start := time.Now()
	out, err = s.transformer.Transform(ctx, req)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to transform photo: %w", err)
	}
	if len(out.Data) == 0 {
		return models.Payload{}, fmt.Errorf("failed to transform photo: %w", providers.ErrNoImage)
	}
	if out.MIMEType == "" {
		out.MIMEType = images.SniffMIMEType(out.Data)
	}
	slog.Debug("Transformation call finished", "session_id", s.id, "duration", time.Since(start))
	return out, nil
}

// finish applies the outcome of a transformation and resolves the task
func (s *Session) finish(task *Task, out models.Payload, callErr error) {
	res := Result{PhotoID: task.id}
	err := s.do(func(st *state) {
		var (
			storeErr error
			status   = models.StatusDone
		)
		if callErr == nil {
			storeErr = st.store.Complete(task.id, out)
		} else {
			storeErr = st.store.Fail(task.id)
			status = models.StatusFailed
		}

		res.Status = status
		res.Err = callErr
		switch {
		case errors.Is(storeErr, storage.ErrNotFound):
			res.Status = models.StatusRemoved
			res.Err = nil
			slog.Debug("Discarding outcome for removed photo", "session_id", s.id, "photo_id", task.id)
		case storeErr != nil:
			slog.Warn("Unable to apply transformation outcome", "session_id", s.id, "photo_id", task.id, "err", storeErr)
		case callErr != nil:
			slog.Error("Photo transformation failed", "session_id", s.id, "photo_id", task.id, "err", callErr)
		default:
			slog.Info("Photo transformed", "session_id", s.id, "photo_id", task.id, "bytes", len(out.Data))
		}
	})
	if err != nil {
		res.Status = models.StatusFailed
		res.Err = err
	}
	task.resolve(res)
}

func (s *Session) exists(id string) bool {
	var ok bool
	_ = s.do(func(st *state) {
		_, ok = st.store.Get(id)
	})
	return ok
}

// SetMode selects the mode for subsequent captures. Photos already captured
// keep their mode.
func (s *Session) SetMode(k modes.Key) error {
	modes.Lookup(k)
	return s.mutate(func(st *state) {
		st.mode = k
	})
}

// SetCustomInstruction sets the instruction used by the custom mode
func (s *Session) SetCustomInstruction(text string) error {
	return s.mutate(func(st *state) {
		st.custom = text
	})
}

func (s *Session) mutate(op func(*state)) error {
	var closed bool
	err := s.do(func(st *state) {
		if st.closed {
			closed = true
			return
		}
		op(st)
	})
	if err == nil && closed {
		err = ErrClosed
	}
	return err
}

// Remove deletes a photo and its images, whether or not its transformation
// is still running. A late outcome for it is discarded.
func (s *Session) Remove(id string) bool {
	var removed bool
	_ = s.do(func(st *state) {
		removed = st.store.Remove(id)
	})
	if removed {
		slog.Info("Photo removed", "session_id", s.id, "photo_id", id)
	}
	return removed
}

// List returns the photos, newest first
func (s *Session) List() []models.Photo {
	var photos []models.Photo
	_ = s.do(func(st *state) {
		photos = st.store.List()
	})
	return photos
}

// Get returns a single photo record
func (s *Session) Get(id string) (models.Photo, bool) {
	var (
		photo models.Photo
		ok    bool
	)
	_ = s.do(func(st *state) {
		photo, ok = st.store.Get(id)
	})
	return photo, ok
}

// State returns a snapshot of the session
func (s *Session) State() models.SessionState {
	snapshot := models.SessionState{ID: s.id}
	_ = s.do(func(st *state) {
		snapshot.ActiveMode = st.mode
		snapshot.CustomInstruction = st.custom
		snapshot.Photos = st.store.List()
	})
	return snapshot
}

// Modes lists the available modes. The custom entry carries the session's
// custom instruction.
func (s *Session) Modes() []modes.Mode {
	var custom string
	_ = s.do(func(st *state) {
		custom = st.custom
	})
	list := modes.List()
	for i := range list {
		list[i].Instruction = modes.Instruction(list[i].Key, custom)
	}
	return list
}

// Input returns the captured image of a photo
func (s *Session) Input(id string) (models.Payload, bool) {
	var (
		p  models.Payload
		ok bool
	)
	_ = s.do(func(st *state) {
		p, ok = st.store.Input(id)
	})
	return p, ok
}

// Output returns the transformed image of a photo. It exists only once the
// photo is done.
func (s *Session) Output(id string) (models.Payload, bool) {
	var (
		p  models.Payload
		ok bool
	)
	_ = s.do(func(st *state) {
		p, ok = st.store.Output(id)
	})
	return p, ok
}

// Close rejects further captures, waits for running transformations until
// ctx is done, then stops the session. Transformations still running at that
// point are cancelled.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		_ = s.do(func(st *state) {
			st.closed = true
		})

		idle := make(chan struct{})
		go func() {
			s.tasks.Wait()
			close(idle)
		}()

		select {
		case <-idle:
		case <-ctx.Done():
			s.closeErr = fmt.Errorf("closing session %s: %w", s.id, ctx.Err())
		}

		s.cancel()
		close(s.stop)
		<-s.stopped
		slog.Info("Session closed", "session_id", s.id)
	})
	return s.closeErr
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/gembooth/internal/images"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/modes"
	"github.com/lehigh-university-libraries/gembooth/internal/session"
)

// StatusSkipped marks a frame that never reached the session
const StatusSkipped = "skipped"

// ErrNoCustomInstruction skips frames in custom mode when the session has no
// custom instruction
var ErrNoCustomInstruction = errors.New("custom mode requires a custom instruction")

// Result is the outcome for one frame
type Result struct {
	Path    string `yaml:"path"`
	Mode    string `yaml:"mode"`
	PhotoID string `yaml:"photoid,omitempty"`
	Status  string `yaml:"status"`
	Error   string `yaml:"error,omitempty"`
	Output  string `yaml:"output,omitempty"`
}

type pending struct {
	result *Result
	task   *session.Task
}

// Run snaps every frame through s, in order, then waits for all outcomes and
// writes the transformed images into outputDir. Frames that cannot be read
// are reported as skipped; they do not stop the run.
func Run(ctx context.Context, s *session.Session, frames []Frame, outputDir string) ([]Result, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]Result, len(frames))
	var queued []pending

	for i, frame := range frames {
		r := &results[i]
		r.Path = frame.Path

		task, mode, err := snapFrame(s, frame)
		r.Mode = mode.String()
		if err != nil {
			r.Status = StatusSkipped
			r.Error = err.Error()
			slog.Warn("Skipping frame", "path", frame.Path, "err", err)
			continue
		}
		r.PhotoID = task.ID()
		queued = append(queued, pending{result: r, task: task})
		slog.Info("Queued frame", "path", frame.Path, "photo_id", task.ID(), "progress", fmt.Sprintf("%d/%d", i+1, len(frames)))
	}

	for _, p := range queued {
		res, err := p.task.Wait(ctx)
		if err != nil {
			return results, fmt.Errorf("waiting for %s: %w", p.result.Path, err)
		}
		p.result.Status = res.Status.String()
		if res.Err != nil {
			p.result.Error = res.Err.Error()
			continue
		}

		out, ok := s.Output(res.PhotoID)
		if !ok {
			continue
		}
		path := filepath.Join(outputDir, res.PhotoID+images.Extension(out.MIMEType))
		if err := os.WriteFile(path, out.Data, 0644); err != nil {
			return results, fmt.Errorf("failed to write output: %w", err)
		}
		p.result.Output = path
	}

	return results, nil
}

func snapFrame(s *session.Session, frame Frame) (*session.Task, modes.Key, error) {
	st := s.State()
	mode := st.ActiveMode
	if frame.Mode != "" {
		k, err := modes.ParseKey(frame.Mode)
		if err != nil {
			return nil, mode, err
		}
		if k == modes.Custom && strings.TrimSpace(st.CustomInstruction) == "" {
			return nil, k, ErrNoCustomInstruction
		}
		if err := s.SetMode(k); err != nil {
			return nil, mode, err
		}
		mode = k
	}

	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return nil, mode, fmt.Errorf("failed to read image: %w", err)
	}
	payload, err := images.Validate(models.Payload{Data: data})
	if err != nil {
		return nil, mode, err
	}

	task, err := s.Snap(payload)
	return task, mode, err
}

// Summary counts results by status
func Summary(results []Result) map[string]int {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

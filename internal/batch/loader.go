package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Frame is one image to push through the booth. An empty Mode keeps the
// session's active mode.
type Frame struct {
	Path string `json:"path" parquet:"path"`
	Mode string `json:"mode,omitempty" parquet:"mode,optional"`
}

// Loader reads frame lists
type Loader struct {
	datasetPath string
}

// NewLoader creates a new frame list loader
func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Load loads frames from a dataset file (JSONL or Parquet). Relative image
// paths are resolved against the dataset's directory.
func (l *Loader) Load() ([]Frame, error) {
	var (
		frames []Frame
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(l.datasetPath)); ext {
	case ".parquet":
		frames, err = l.loadParquet()
	case ".jsonl", ".json":
		frames, err = l.loadJSONL()
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(l.datasetPath)
	for i := range frames {
		if frames[i].Path != "" && !filepath.IsAbs(frames[i].Path) {
			frames[i].Path = filepath.Join(base, frames[i].Path)
		}
	}
	return frames, nil
}

func (l *Loader) loadJSONL() ([]Frame, error) {
	slog.Debug("Opening JSONL file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var frames []Frame
	scanner := bufio.NewScanner(file)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var frame Frame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		frames = append(frames, frame)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Finished reading JSONL file", "total_frames", len(frames))
	return frames, nil
}

func (l *Loader) loadParquet() ([]Frame, error) {
	slog.Debug("Opening Parquet file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Frame](pf)
	defer reader.Close()

	frames := make([]Frame, 0, pf.NumRows())
	rows := make([]Frame, 128)
	for {
		n, err := reader.Read(rows)
		frames = append(frames, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet file", "total_frames", len(frames))
	return frames, nil
}

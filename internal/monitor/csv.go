package monitor

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileName is the monitor file written inside the log directory.
const FileName = "monitor.csv"

// CSVSink writes one row per episode. The first line is a '#' comment
// holding a JSON header with the run metadata.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

func NewCSVSink(dir, runID, envID string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create monitor dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("create monitor file: %w", err)
	}

	header, err := json.Marshal(map[string]any{
		"t_start": float64(time.Now().UnixMilli()) / 1000,
		"env_id":  envID,
		"run_id":  runID,
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "#%s\n", header); err != nil {
		f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"r", "l", "t", "scored", "start_x"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSVSink{f: f, w: w}, w.Error()
}

func (s *CSVSink) Record(_ context.Context, ep Episode) error {
	err := s.w.Write([]string{
		strconv.FormatFloat(ep.Reward, 'f', 6, 64),
		strconv.Itoa(ep.Ticks),
		strconv.FormatFloat(ep.Elapsed.Seconds(), 'f', 6, 64),
		strconv.FormatBool(ep.Scored),
		strconv.FormatFloat(ep.StartX, 'f', 1, 64),
	})
	if err != nil {
		return fmt.Errorf("monitor csv: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

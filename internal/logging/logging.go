package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunFile names a per-run output file: <dir>/<program>-<start>.<ext>,
// with start formatted as a compact UTC timestamp.
func RunFile(dir, program, ext string, start time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", program, start.UTC().Format("20060102T150405"), ext))
}

// OpenRunFile creates dir when missing and truncates or creates the run file.
func OpenRunFile(dir, program, ext string, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.Create(RunFile(dir, program, ext, start))
	if err != nil {
		return nil, fmt.Errorf("failed to open run file: %w", err)
	}
	return f, nil
}

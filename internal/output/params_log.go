package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
)

// ParameterLogger records the parameters that produced an image.
type ParameterLogger interface {
	LogParameters(ctx context.Context, index int, filename string, ps schema.ParameterSet) error
}

// CSVLogger appends one row per image to a CSV file. The header row
// (filename followed by the parameter names) is written once per file, only when the
// file is new or empty. Safe for concurrent use.
type CSVLogger struct {
	path string
	mu   sync.Mutex
}

// NewCSVLogger logs to path. The file is created on the first row.
func NewCSVLogger(path string) *CSVLogger {
	return &CSVLogger{path: path}
}

// Path returns the destination file.
func (l *CSVLogger) Path() string {
	return l.path
}

func (l *CSVLogger) LogParameters(_ context.Context, _ int, filename string, ps schema.ParameterSet) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening parameter log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing parameter log: %w", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat parameter log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(append([]string{"filename"}, ps.Names()...)); err != nil {
			return fmt.Errorf("writing parameter log header: %w", err)
		}
	}
	if err := w.Write(append([]string{filename}, ps.Strings()...)); err != nil {
		return fmt.Errorf("writing parameter log row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// MultiLogger fans a record out to several loggers and joins their errors.
type MultiLogger []ParameterLogger

func (m MultiLogger) LogParameters(ctx context.Context, index int, filename string, ps schema.ParameterSet) error {
	var errs []error
	for _, l := range m {
		if err := l.LogParameters(ctx, index, filename, ps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

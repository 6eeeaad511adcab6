package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// TimeLayout is the timestamp format of file entries
const TimeLayout = "2006-01-02 15:04:05"

/* File appends entries to a single log file
 * Format: [2006-01-02 15:04:05] [LEVEL] message
 */
type File struct {
	mu   sync.Mutex
	file afero.File
}

// OpenFile opens path for appending, creating it and its directory if needed
func OpenFile(fs afero.Fs, path string) (*File, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	return &File{file: f}, nil
}

// Append writes the entry as one line
func (s *File) Append(entry Entry) error {
	line := fmt.Sprintf("[%s] [%s] %s\n", entry.Time.Format(TimeLayout), entry.Level, entry.Message)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("writing log file: %w", err)
	}
	return nil
}

// Close closes the underlying file
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.file.Close()
}

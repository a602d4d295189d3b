package recording

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// maxRecentRecordings caps the library: old entries fall off the end
// on every save and load.
const maxRecentRecordings = 5

const metadataFilename = "recordings.json"

// Store persists recording metadata as a pretty-printed JSON array next
// to the audio files themselves.
type Store struct {
	dir string
}

// NewStore creates the recordings directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating recordings directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the recordings directory.
func (s *Store) Dir() string { return s.dir }

// Path resolves a recording filename to its full path.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

func (s *Store) metadataPath() string {
	return filepath.Join(s.dir, metadataFilename)
}

// Save writes the list, newest first, capped at the retention limit.
func (s *Store) Save(recordings []Recording) error {
	if len(recordings) > maxRecentRecordings {
		recordings = recordings[:maxRecentRecordings]
	}
	data, err := json.MarshalIndent(recordings, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing recordings: %w", err)
	}
	if err := os.WriteFile(s.metadataPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata file: %w", err)
	}
	slog.Debug("saved recordings metadata", "path", s.metadataPath(), "count", len(recordings))
	return nil
}

// Load reads the list back, silently dropping entries whose backing
// audio file has disappeared, sorted newest first and capped at the
// retention limit. A missing metadata file yields an empty list.
func (s *Store) Load() ([]Recording, error) {
	data, err := os.ReadFile(s.metadataPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}

	var recordings []Recording
	if err := json.Unmarshal(data, &recordings); err != nil {
		return nil, fmt.Errorf("parsing metadata file: %w", err)
	}

	valid := recordings[:0]
	for _, rec := range recordings {
		if _, err := os.Stat(s.Path(rec.Filename)); err == nil {
			valid = append(valid, rec)
		} else {
			slog.Debug("dropping recording with missing file", "filename", rec.Filename)
		}
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Timestamp.After(valid[j].Timestamp)
	})
	if len(valid) > maxRecentRecordings {
		valid = valid[:maxRecentRecordings]
	}
	return valid, nil
}

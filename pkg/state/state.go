// Package state persists Singer bookmarks between runs.
//
// The document shape is the Singer one:
//
//	{"bookmarks": {"products": {"replication_key": "modified", "replication_key_value": "2024-02-02T00:00:00Z"}}}
package state

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// Bookmark is the committed watermark of one stream.
type Bookmark struct {
	ReplicationKey      string      `json:"replication_key"`
	ReplicationKeyValue interface{} `json:"replication_key_value"`
}

// Document is the serialized state.
type Document struct {
	Bookmarks map[string]Bookmark `json:"bookmarks"`
}

// State is a concurrency-safe set of bookmarks.
type State struct {
	mu        sync.RWMutex
	bookmarks map[string]Bookmark
}

// New returns an empty state.
func New() *State {
	return &State{bookmarks: make(map[string]Bookmark)}
}

// Parse reads a state document. Empty input is an empty state.
func Parse(data []byte) (*State, error) {
	s := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	var doc Document
	if err := jsonpool.UnmarshalNumber(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to parse state")
	}
	for name, b := range doc.Bookmarks {
		s.bookmarks[name] = b
	}
	return s, nil
}

// Load reads the state file at path. A missing file is an empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the --state flag
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state file").
			WithDetail("path", path)
	}
	return Parse(data)
}

// Get returns the bookmark for a stream.
func (s *State) Get(streamName string) (Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookmarks[streamName]
	return b, ok
}

// StartingValue resolves the lower bound of an incremental sync: the
// bookmark when it was recorded for the same replication key, otherwise
// startDate. Full-table streams always get nil.
func (s *State) StartingValue(desc stream.Descriptor, startDate string) interface{} {
	if !desc.Incremental() {
		return nil
	}
	if b, ok := s.Get(desc.Name); ok && b.ReplicationKey == desc.ReplicationKey && b.ReplicationKeyValue != nil {
		return b.ReplicationKeyValue
	}
	if startDate == "" {
		return nil
	}
	return startDate
}

// Advance records value as the stream's bookmark unless the existing
// bookmark for the same replication key is greater. It reports whether
// the bookmark changed.
func (s *State) Advance(streamName, replicationKey string, value interface{}) bool {
	if replicationKey == "" || value == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.bookmarks[streamName]; ok && cur.ReplicationKey == replicationKey && cur.ReplicationKeyValue != nil {
		if stream.Compare(value, cur.ReplicationKeyValue) <= 0 {
			return false
		}
	}
	s.bookmarks[streamName] = Bookmark{ReplicationKey: replicationKey, ReplicationKeyValue: value}
	return true
}

// Snapshot returns a copy of the current document.
func (s *State) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := Document{Bookmarks: make(map[string]Bookmark, len(s.bookmarks))}
	for k, v := range s.bookmarks {
		doc.Bookmarks[k] = v
	}
	return doc
}

// Save writes the state to path atomically via a temporary file.
func (s *State) Save(path string) error {
	data, err := jsonpool.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to marshal state")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create state directory").
			WithDetail("path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create temporary state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to replace state file").
			WithDetail("path", path)
	}
	return nil
}

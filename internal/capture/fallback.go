package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Stub is the minimal page record kept when the store cannot be written.
type Stub struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Timestamp   int64  `json:"timestamp"`
	Summary     string `json:"summary"`
	Meta        string `json:"meta,omitempty"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash"`
}

type fallbackFile struct {
	Pages     []Stub `json:"pages"`
	UpdatedAt string `json:"updated_at"`
}

// Fallback is a JSON file of page stubs, one per url.
type Fallback struct {
	path string
	mu   sync.Mutex
}

func NewFallback(path string) *Fallback {
	return &Fallback{path: path}
}

func (f *Fallback) Path() string { return f.path }

func (f *Fallback) load() (*fallbackFile, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fallbackFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading fallback file: %w", err)
	}
	var state fallbackFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing fallback file %s: %w", f.path, err)
	}
	return &state, nil
}

func (f *Fallback) save(state *fallbackFile) error {
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing fallback stubs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating fallback dir: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("writing fallback stubs to %s: %w", f.path, err)
	}
	return nil
}

// SaveStub records s, replacing any stub for the same url.
func (f *Fallback) SaveStub(s Stub) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.load()
	if err != nil {
		// A corrupt file is replaced rather than blocking capture.
		state = &fallbackFile{}
	}
	for i := range state.Pages {
		if state.Pages[i].URL == s.URL {
			state.Pages[i] = s
			return f.save(state)
		}
	}
	state.Pages = append(state.Pages, s)
	return f.save(state)
}

// Stubs returns the stored stubs in insertion order.
func (f *Fallback) Stubs() ([]Stub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.load()
	if err != nil {
		return nil, err
	}
	return state.Pages, nil
}

// Replace overwrites the stub list. An empty list removes the file.
func (f *Fallback) Replace(stubs []Stub) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(stubs) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing fallback file: %w", err)
		}
		return nil
	}
	return f.save(&fallbackFile{Pages: stubs})
}

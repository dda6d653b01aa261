package tia

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// WatermarkStore persists the last seen seqUpdate cursor per collection to a
// JSON file, so an update traversal can resume across process restarts:
//
//	store, _ := tia.OpenWatermarkStore(".state")
//	seq := store.Load("attacks/ddos")
//	seq2, _ := client.Feeds.Updates(ctx, "attacks/ddos", &tia.FeedQuery{SeqUpdate: seq})
//	for portion, err := range seq2 {
//	    ...
//	    if cur, ok := portion.SeqUpdate(); ok {
//	        _ = store.Save("attacks/ddos", cur)
//	    }
//	}
//
// The store is safe for concurrent use within one process; it does not
// coordinate between processes.
type WatermarkStore struct {
	path string

	mu    sync.Mutex
	marks map[string]int64
}

// OpenWatermarkStore opens or creates a watermark file at path.
func OpenWatermarkStore(path string) (*WatermarkStore, error) {
	s := &WatermarkStore{
		path:  path,
		marks: make(map[string]int64),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading watermark file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.marks); err != nil {
			return nil, fmt.Errorf("decoding watermark file %s: %w", path, err)
		}
	}
	return s, nil
}

// Load returns the stored cursor for a collection, or zero if none was
// saved. A zero cursor starts an update traversal from the earliest
// available record.
func (s *WatermarkStore) Load(collection string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[collection]
}

// Save stores the cursor for a collection and rewrites the file.
func (s *WatermarkStore) Save(collection string, seqUpdate int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marks[collection] = seqUpdate

	data, err := json.Marshal(s.marks)
	if err != nil {
		return fmt.Errorf("encoding watermarks: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing watermark file: %w", err)
	}
	return nil
}

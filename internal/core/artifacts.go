package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrArtifactNotFound is returned for unknown or expired download ids.
var ErrArtifactNotFound = errors.New("download not found or expired")

// DefaultArtifactTTL is how long a cleaned file stays downloadable.
const DefaultArtifactTTL = 15 * time.Minute

// Artifact is an encoded cleaned file waiting to be downloaded.
type Artifact struct {
	ID        string
	Name      string
	MIMEType  string
	Data      []byte
	ExpiresAt time.Time
}

// ArtifactStore keeps artifacts in memory until they expire.
type ArtifactStore struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]*Artifact
}

// NewArtifactStore returns a store whose entries live for ttl.
func NewArtifactStore(ttl time.Duration) *ArtifactStore {
	if ttl <= 0 {
		ttl = DefaultArtifactTTL
	}
	return &ArtifactStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]*Artifact),
	}
}

// Put stores data under a new id and returns the stored artifact.
func (s *ArtifactStore) Put(name, mimeType string, data []byte) Artifact {
	a := &Artifact{
		ID:        uuid.NewString(),
		Name:      name,
		MIMEType:  mimeType,
		Data:      data,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.items[a.ID] = a
	s.mu.Unlock()

	return *a
}

// Get returns the artifact with the given id.
func (s *ArtifactStore) Get(id string) (Artifact, error) {
	s.mu.RLock()
	a, ok := s.items[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(a.ExpiresAt) {
		return Artifact{}, ErrArtifactNotFound
	}
	return *a, nil
}

// Len returns the number of stored artifacts, expired ones included.
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep removes expired artifacts and returns how many were removed.
func (s *ArtifactStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, a := range s.items {
		if !now.Before(a.ExpiresAt) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired artifacts every interval until ctx is
// cancelled.
func (s *ArtifactStore) StartJanitor(ctx context.Context, interval time.Duration) {
	slog.Info("artifact janitor started", "ttl", s.ttl.String(), "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("artifact janitor stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("expired artifacts removed", "count", n)
			}
		}
	}
}

package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStore_PutGet(t *testing.T) {
	s := NewArtifactStore(time.Minute)

	a := s.Put("cleaned_a.csv", "text/csv", []byte("a\n1\n"))
	require.NotEmpty(t, a.ID)

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "cleaned_a.csv", got.Name)
	assert.Equal(t, []byte("a\n1\n"), got.Data)

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestArtifactStore_Expiry(t *testing.T) {
	s := NewArtifactStore(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := s.Put("cleaned_a.csv", "text/csv", []byte("x"))
	b := s.Put("cleaned_b.csv", "text/csv", []byte("y"))

	now = now.Add(59 * time.Second)
	_, err := s.Get(a.ID)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = s.Get(a.ID)
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Sweep())
	assert.Zero(t, s.Len())

	_, err = s.Get(b.ID)
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestArtifactStore_JanitorStopsOnCancel(t *testing.T) {
	s := NewArtifactStore(time.Millisecond)
	s.Put("cleaned_a.csv", "text/csv", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

package output

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "outputs"), time.Minute, log.New(io.Discard))
	require.NoError(t, err)
	return s
}

func sampleLog() types.ProcessingLog {
	return types.ProcessingLog{
		SessionId:        "s1",
		ProcessingType:   "beta_issues",
		TotalRows:        5,
		ChunkSize:        2,
		NumberOfChunks:   3,
		FailedRowDetails: []types.FailedRow{{RowIndex: 2, ChunkID: 1, Error: "timeout"}},
		StartedAt:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newStore(t)
	a, err := s.Save(context.Background(), "beta_issues_x.xlsx", bytes.NewBufferString("PK-data"), sampleLog())
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	data, err := os.ReadFile(a.XLSXPath())
	require.NoError(t, err)
	assert.Equal(t, "PK-data", string(data))

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	plog, err := s.Log(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, plog.NumberOfChunks)
	require.Len(t, plog.FailedRowDetails, 1)
	assert.Equal(t, 2, plog.FailedRowDetails[0].RowIndex)
	assert.True(t, plog.StartedAt.Equal(sampleLog().StartedAt))

	raw, err := os.ReadFile(a.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"number_of_chunks": 3`)
}

func TestGetFallsBackToDisk(t *testing.T) {
	s := newStore(t)
	a, err := s.Save(context.Background(), "out.xlsx", bytes.NewBufferString("x"), sampleLog())
	require.NoError(t, err)

	// a second store over the same folder has an empty index
	other, err := NewStore(s.Folder(), time.Minute, log.New(io.Discard))
	require.NoError(t, err)
	got, err := other.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "out.xlsx", got.FileName)
}

func TestGetRejectsUnknownAndUnsafeIDs(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{"", "missing1", "../outputs", "a/b"} {
		_, err := s.Get(id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
	_, err := s.Log("missing1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsBadName(t *testing.T) {
	s := newStore(t)
	_, err := s.Save(context.Background(), "notes.txt", bytes.NewBufferString("x"), sampleLog())
	assert.Error(t, err)
	entries, err := os.ReadDir(s.Folder())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveCancelled(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Save(ctx, "out.xlsx", bytes.NewBufferString("x"), sampleLog())
	assert.ErrorIs(t, err, context.Canceled)
	entries, err := os.ReadDir(s.Folder())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

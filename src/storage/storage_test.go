package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Options{
		DatabasePath: filepath.Join(dir, "db", "history.db"),
		Location:     LocationCustom,
		CustomDir:    filepath.Join(dir, "captures"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func writeCapture(t *testing.T, s *Store, kind CaptureType, at time.Time) *Item {
	t.Helper()
	path, err := s.NewPath(kind, "png", at)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o644))
	item, err := s.Add(kind, path, at)
	require.NoError(t, err)
	return item
}

func TestGenerateFilename(t *testing.T) {
	at := time.Date(2025, 1, 2, 15, 4, 5, 0, time.Local)
	assert.Equal(t, "Screenshot 2025-01-02 at 15.04.05.png", GenerateFilename(TypeScreenshot, "png", at))
	assert.Equal(t, "GIF 2025-01-02 at 15.04.05.gif", GenerateFilename(TypeGIF, ".gif", at))
	assert.Equal(t, "Recording 2025-01-02 at 15.04.05.mp4", GenerateFilename(TypeRecording, "mp4", at))
}

func TestNewPathAvoidsCollisions(t *testing.T) {
	s, _ := openTemp(t)
	at := time.Date(2025, 1, 2, 15, 4, 5, 0, time.Local)

	first := writeCapture(t, s, TypeScreenshot, at)
	second, err := s.NewPath(TypeScreenshot, "png", at)
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second)
	assert.Equal(t, "Screenshot 2025-01-02 at 15.04.05 (1).png", filepath.Base(second))
}

func TestHistoryNewestFirst(t *testing.T) {
	s, _ := openTemp(t)
	base := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	a := writeCapture(t, s, TypeScreenshot, base)
	b := writeCapture(t, s, TypeGIF, base.Add(time.Minute))

	items, err := s.History()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID)
	assert.Equal(t, a.ID, items[1].ID)
	assert.NotEmpty(t, a.ID)
}

func TestToggleFavorite(t *testing.T) {
	s, _ := openTemp(t)
	item := writeCapture(t, s, TypeScreenshot, time.Now())

	fav, err := s.ToggleFavorite(item.ID)
	require.NoError(t, err)
	assert.True(t, fav)
	fav, err = s.ToggleFavorite(item.ID)
	require.NoError(t, err)
	assert.False(t, fav)

	_, err = s.ToggleFavorite("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesFile(t *testing.T) {
	s, _ := openTemp(t)
	item := writeCapture(t, s, TypeScreenshot, time.Now())

	require.NoError(t, s.Delete(item.ID))
	_, err := os.Stat(item.Path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, s.Delete(item.ID), ErrNotFound)
}

func TestInfo(t *testing.T) {
	s, dir := openTemp(t)
	writeCapture(t, s, TypeScreenshot, time.Now())
	writeCapture(t, s, TypeScreenshot, time.Now().Add(time.Second))

	info, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, LocationCustom, info.Location)
	assert.Equal(t, filepath.Join(dir, "captures"), info.Path)
	assert.Equal(t, 2, info.TotalItems)
	assert.EqualValues(t, 10, info.TotalSizeBytes)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, LocationDesktop, ParseLocation(" Desktop "))
	assert.Equal(t, LocationDefault, ParseLocation("bogus"))

	s, _ := openTemp(t)
	assert.Error(t, s.SetLocation(LocationCustom, ""))
	require.NoError(t, s.SetLocation(LocationDefault, ""))
	assert.Equal(t, "Screenshots", filepath.Base(s.Dir()))
}

package gui

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/window"
)

func TestFactoryCreatesAndClosesWindows(t *testing.T) {
	a := &App{fa: test.NewApp()}
	defer a.fa.Quit()

	closed := make(chan struct{}, 1)
	f := NewFactory(a, nil)
	s, err := f.Create("settings", window.Config{Title: "Preferences", Width: 600, Height: 500}, func() {
		closed <- struct{}{}
	})
	require.NoError(t, err)
	require.NoError(t, s.Focus())

	windows := a.fa.Driver().AllWindows()
	require.Len(t, windows, 1)
	assert.Equal(t, "Preferences", windows[0].Title())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	<-closed
}

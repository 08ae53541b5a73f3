package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"cmd", []uint16{91, 92}},
		{"super", []uint16{91, 92}},
		{"q", []uint16{81}},
		{"A", []uint16{65}},
		{"o", []uint16{79}},
		{"0", []uint16{48}},
		{"9", []uint16{57}},
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},
		{"space", []uint16{32}},
		{"enter", []uint16{13}},
		{"escape", []uint16{27}},
		{"/", []uint16{191}},
		{"f25", nil},
		{"fx", nil},
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			assert.Equal(t, tt.expected, keyNameToRawcodes(tt.keyName))
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Shift+3", []string{"ctrl", "shift", "3"}},
		{"Cmd+Shift+Alt+A", []string{"cmd", "shift", "alt", "a"}},
		{"Win+Shift+S", []string{"cmd", "shift", "s"}},
		{"Super + Alt + T", []string{"cmd", "alt", "t"}},
		{"Cmd+/", []string{"cmd", "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseHotkey(tt.input))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Native ")
	require.NoError(t, err)
	assert.Equal(t, ModeNative, m)

	m, err = ParseMode("safe")
	require.NoError(t, err)
	assert.Equal(t, ModeSafe, m)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}

func TestBindingsPerMode(t *testing.T) {
	combos := func(mode Mode) map[Action]string {
		out := make(map[Action]string)
		for _, b := range Bindings(mode) {
			out[b.Action] = b.Combo
		}
		return out
	}

	safe := combos(ModeSafe)
	assert.Equal(t, "Ctrl+Shift+4", safe[ActionCaptureArea])
	assert.Equal(t, "Ctrl+Shift+Alt+A", safe[ActionAllInOne])
	assert.Equal(t, "Alt+Shift+8", safe[ActionRecordWindow])
	assert.Equal(t, "Cmd+/", safe[ActionShowShortcuts])

	native := combos(ModeNative)
	assert.Equal(t, "Cmd+Shift+4", native[ActionCaptureArea])
	assert.Equal(t, "Alt+Shift+8", native[ActionRecordWindow])
	assert.Len(t, native, 11)
}

func TestMatcherCompletesCombination(t *testing.T) {
	m := NewMatcher(Bindings(ModeSafe))

	_, ok := m.KeyDown(162) // left ctrl
	assert.False(t, ok)
	_, ok = m.KeyDown(161) // right shift
	assert.False(t, ok)

	b, ok := m.KeyDown(52) // 4
	require.True(t, ok)
	assert.Equal(t, ActionCaptureArea, b.Action)

	// Auto-repeat of the held key does not fire again.
	_, ok = m.KeyDown(52)
	assert.False(t, ok)

	m.KeyUp(52)
	b, ok = m.KeyDown(52)
	require.True(t, ok)
	assert.Equal(t, ActionCaptureArea, b.Action)
}

func TestMatcherPrefersMostSpecificBinding(t *testing.T) {
	m := NewMatcher([]Binding{
		{ActionCaptureFullscreen, "Ctrl+Shift+3"},
		{ActionRecordFullscreen, "Ctrl+Shift+Alt+3"},
	})
	m.KeyDown(162)
	m.KeyDown(160)
	m.KeyDown(164)
	b, ok := m.KeyDown(51)
	require.True(t, ok)
	assert.Equal(t, ActionRecordFullscreen, b.Action)
}

func TestMatcherReleaseBreaksCombination(t *testing.T) {
	m := NewMatcher(Bindings(ModeSafe))
	m.KeyDown(162)
	m.KeyDown(160)
	m.KeyUp(160)
	_, ok := m.KeyDown(79) // o
	assert.False(t, ok)

	m.KeyUp(79)
	m.Reset()
	_, ok = m.KeyDown(79)
	assert.False(t, ok)
}

func TestMatcherSkipsUnmappableBinding(t *testing.T) {
	m := NewMatcher([]Binding{{ActionPin, "Ctrl+Hyper+P"}})
	m.KeyDown(162)
	_, ok := m.KeyDown(80)
	assert.False(t, ok)
}

func TestListenerDispatch(t *testing.T) {
	l := New(ModeSafe)
	events, unsubscribe := l.Subscribe(8)

	l.dispatch(Event{Kind: EventKeyDown, Rawcode: 162})
	l.dispatch(Event{Kind: EventKeyDown, Rawcode: 160})
	l.dispatch(Event{Kind: EventKeyDown, Rawcode: 80})

	select {
	case tr := <-l.Triggers():
		assert.Equal(t, ActionPin, tr.Action)
		assert.Equal(t, "Ctrl+Shift+P", tr.Combo)
	default:
		t.Fatal("expected a trigger")
	}
	assert.Len(t, events, 3)

	unsubscribe()
	unsubscribe()
	l.dispatch(Event{Kind: EventPointerMove, X: 1, Y: 2})
	assert.Len(t, events, 3)
}

func TestListenerSetMode(t *testing.T) {
	l := New(ModeSafe)
	require.Error(t, l.SetMode("turbo"))
	assert.Equal(t, ModeSafe, l.Mode())

	require.NoError(t, l.SetMode(ModeNative))
	assert.Equal(t, ModeNative, l.Mode())

	l.dispatch(Event{Kind: EventKeyDown, Rawcode: 91})
	l.dispatch(Event{Kind: EventKeyDown, Rawcode: 160})
	l.dispatch(Event{Kind: EventKeyDown, Rawcode: 51})
	tr := <-l.Triggers()
	assert.Equal(t, ActionCaptureFullscreen, tr.Action)
}

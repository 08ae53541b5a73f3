package hotkey

import "log"

type compiledBinding struct {
	Binding
	keys [][]uint16
}

func (b compiledBinding) uses(rawcode uint16) bool {
	for _, alts := range b.keys {
		for _, rc := range alts {
			if rc == rawcode {
				return true
			}
		}
	}
	return false
}

// Matcher tracks pressed keys and reports which binding a key press completes.
// It is not safe for concurrent use.
type Matcher struct {
	bindings []compiledBinding
	pressed  map[uint16]bool
}

// NewMatcher compiles bindings. Bindings containing an unmappable key are skipped.
func NewMatcher(bindings []Binding) *Matcher {
	m := &Matcher{pressed: make(map[uint16]bool)}
	for _, b := range bindings {
		cb := compiledBinding{Binding: b}
		valid := true
		for _, name := range parseHotkey(b.Combo) {
			rcs := keyNameToRawcodes(name)
			if len(rcs) == 0 {
				log.Printf("ERROR: Cannot map key '%s' in %s, binding skipped", name, b.Combo)
				valid = false
				break
			}
			cb.keys = append(cb.keys, rcs)
		}
		if valid && len(cb.keys) > 0 {
			m.bindings = append(m.bindings, cb)
		}
	}
	return m
}

// KeyDown records a press and returns the binding it completes. Auto-repeat
// presses of a held key never match. When several bindings are satisfied the
// one with the most keys wins.
func (m *Matcher) KeyDown(rawcode uint16) (Binding, bool) {
	if m.pressed[rawcode] {
		return Binding{}, false
	}
	m.pressed[rawcode] = true

	var best *compiledBinding
	for i := range m.bindings {
		b := &m.bindings[i]
		if !b.uses(rawcode) || !m.satisfied(b) {
			continue
		}
		if best == nil || len(b.keys) > len(best.keys) {
			best = b
		}
	}
	if best == nil {
		return Binding{}, false
	}
	return best.Binding, true
}

// KeyUp records a release.
func (m *Matcher) KeyUp(rawcode uint16) {
	delete(m.pressed, rawcode)
}

// Reset forgets every pressed key.
func (m *Matcher) Reset() {
	clear(m.pressed)
}

func (m *Matcher) satisfied(b *compiledBinding) bool {
	for _, alts := range b.keys {
		down := false
		for _, rc := range alts {
			if m.pressed[rc] {
				down = true
				break
			}
		}
		if !down {
			return false
		}
	}
	return true
}

package hotkey

import (
	"log"
	"strings"
)

// Windows virtual-key codes. Modifiers report both the left and right variant.
var namedRawcodes = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"esc":       {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"insert":    {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pagedown":  {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
	"/":         {191}, // VK_OEM_2
	"=":         {187}, // VK_OEM_PLUS
	"-":         {189}, // VK_OEM_MINUS
}

var keyAliases = map[string]string{
	"win":    "cmd",
	"super":  "cmd",
	"return": "enter",
	"escape": "esc",
	"del":    "delete",
	"ins":    "insert",
	"pgup":   "pageup",
	"pgdn":   "pagedown",
	"slash":  "/",
	"equal":  "=",
	"minus":  "-",
}

// Rawcodes for the well-known Escape and Enter keys, used by the overlay.
const (
	RawEscape uint16 = 27
	RawEnter  uint16 = 13
)

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(combo string) []string {
	parts := strings.Split(strings.ToLower(combo), "+")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "win" || part == "super" {
			part = "cmd"
		}
		keys = append(keys, part)
	}
	return keys
}

// keyNameToRawcodes maps a key name to its Windows virtual key code rawcodes.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if alias, ok := keyAliases[keyName]; ok {
		keyName = alias
	}
	if codes, ok := namedRawcodes[keyName]; ok {
		return codes
	}

	if len(keyName) == 1 {
		c := keyName[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}

	// F1-F24 are contiguous from VK_F1.
	if strings.HasPrefix(keyName, "f") && len(keyName) <= 3 {
		n := 0
		for _, c := range keyName[1:] {
			if c < '0' || c > '9' {
				n = 0
				break
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}

	log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
	return nil
}

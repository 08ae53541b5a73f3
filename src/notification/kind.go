package notification

// Kind is the closed set of status notifications.
type Kind int

const (
	KindCopy Kind = iota
	KindSave
	KindPin
	KindOCR
	KindOpen
	KindDelete
	KindShortcutModeChanged
	KindShortcutModeFailed
)

// Appearance is the fixed icon/message/color triple of a Kind.
type Appearance struct {
	Icon    string
	Message string
	Color   string
}

var appearances = map[Kind]Appearance{
	KindCopy:                {Icon: "clipboard", Message: "Copied to clipboard", Color: "#34c759"},
	KindSave:                {Icon: "download", Message: "Saved", Color: "#0a84ff"},
	KindPin:                 {Icon: "pin", Message: "Pinned to screen", Color: "#af52de"},
	KindOCR:                 {Icon: "text", Message: "Text copied", Color: "#ff9f0a"},
	KindOpen:                {Icon: "external-link", Message: "Opened", Color: "#5ac8fa"},
	KindDelete:              {Icon: "trash", Message: "Deleted", Color: "#ff3b30"},
	KindShortcutModeChanged: {Icon: "keyboard", Message: "Shortcut mode changed", Color: "#34c759"},
	KindShortcutModeFailed:  {Icon: "alert", Message: "Failed to change shortcut mode", Color: "#ff3b30"},
}

// Appearance returns the presentation triple for k.
func (k Kind) Appearance() Appearance {
	return appearances[k]
}

// Valid reports whether k belongs to the enumeration.
func (k Kind) Valid() bool {
	_, ok := appearances[k]
	return ok
}

func (k Kind) String() string {
	switch k {
	case KindCopy:
		return "copy"
	case KindSave:
		return "save"
	case KindPin:
		return "pin"
	case KindOCR:
		return "ocr"
	case KindOpen:
		return "open"
	case KindDelete:
		return "delete"
	case KindShortcutModeChanged:
		return "shortcut-mode-changed"
	case KindShortcutModeFailed:
		return "shortcut-mode-failed"
	default:
		return "unknown"
	}
}

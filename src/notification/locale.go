package notification

import (
	"log"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var germanMessages = map[Kind]string{
	KindCopy:                "In die Zwischenablage kopiert",
	KindSave:                "Gespeichert",
	KindPin:                 "Auf dem Bildschirm angeheftet",
	KindOCR:                 "Text kopiert",
	KindOpen:                "Geöffnet",
	KindDelete:              "Gelöscht",
	KindShortcutModeChanged: "Tastenkürzel-Modus geändert",
	KindShortcutModeFailed:  "Tastenkürzel-Modus konnte nicht geändert werden",
}

func messageID(k Kind) string { return "notification." + k.String() }

func newBundle() *i18n.Bundle {
	b := i18n.NewBundle(language.English)
	for k, a := range appearances {
		if err := b.AddMessages(language.English, &i18n.Message{ID: messageID(k), Other: a.Message}); err != nil {
			log.Printf("notification: add message %s: %v", k, err)
		}
	}
	for k, msg := range germanMessages {
		if err := b.AddMessages(language.German, &i18n.Message{ID: messageID(k), Other: msg}); err != nil {
			log.Printf("notification: add message %s: %v", k, err)
		}
	}
	return b
}

// Localizer renders notification messages in the preferred language.
type Localizer struct {
	l *i18n.Localizer
}

// NewLocalizer prefers langs in order (e.g. "de-DE", "en"); English is the
// fallback.
func NewLocalizer(langs ...string) *Localizer {
	return &Localizer{l: i18n.NewLocalizer(newBundle(), langs...)}
}

// Message returns the localized message of k.
func (l *Localizer) Message(k Kind) string {
	if l == nil || !k.Valid() {
		return k.Appearance().Message
	}
	msg, err := l.l.Localize(&i18n.LocalizeConfig{MessageID: messageID(k)})
	if err != nil {
		return k.Appearance().Message
	}
	return msg
}

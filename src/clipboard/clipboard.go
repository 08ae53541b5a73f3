package clipboard

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"sync"

	textclip "github.com/atotto/clipboard"
	"golang.design/x/clipboard"
)

// ErrImageUnsupported is returned by WriteImage when the native clipboard
// could not be initialized.
var ErrImageUnsupported = errors.New("clipboard: image writes unavailable")

var (
	writeMu sync.Mutex
	native  bool
)

// Init initializes the native clipboard. When that fails, text writes fall
// back to the platform clipboard commands and image writes are unavailable.
func Init() error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := clipboard.Init(); err != nil {
		native = false
		if textclip.Unsupported {
			return fmt.Errorf("no clipboard available: %w", err)
		}
		log.Printf("clipboard: native init failed, using command fallback: %v", err)
		return nil
	}
	native = true
	return nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if native {
		clipboard.Write(clipboard.FmtText, []byte(text))
		return nil
	}
	return textclip.WriteAll(text)
}

// WriteImage places img on the clipboard as PNG.
func WriteImage(img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode clipboard image: %w", err)
	}
	return WritePNG(buf.Bytes())
}

// WritePNG places already encoded PNG data on the clipboard.
func WritePNG(data []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if !native {
		return ErrImageUnsupported
	}
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}

// System is the process clipboard as a value, for components that take a
// clipboard collaborator.
type System struct{}

func (System) WriteText(text string) error { return Write(text) }
func (System) WriteImage(img image.Image) error { return WriteImage(img) }

package clipboard

import (
	"image"
	"testing"
)

func TestWrite(t *testing.T) {
	if err := Init(); err != nil {
		t.Skipf("clipboard unavailable: %v", err)
	}
	if err := Write("test text"); err != nil {
		t.Logf("Failed to write to clipboard: %v", err)
	}
}

func TestWriteImageWithoutNative(t *testing.T) {
	writeMu.Lock()
	saved := native
	native = false
	writeMu.Unlock()
	defer func() {
		writeMu.Lock()
		native = saved
		writeMu.Unlock()
	}()

	err := System{}.WriteImage(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if err != ErrImageUnsupported {
		t.Fatalf("expected ErrImageUnsupported, got %v", err)
	}
}

package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var (
	iconOnce sync.Once
	icons    [2][]byte
)

// Icon returns the 32x32 PNG tray icon: a dashed selection frame, with a red
// dot while recording.
func Icon(recording bool) []byte {
	iconOnce.Do(func() {
		icons[0] = renderIcon(false)
		icons[1] = renderIcon(true)
	})
	if recording {
		return icons[1]
	}
	return icons[0]
}

func renderIcon(recording bool) []byte {
	const size = 32
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	frame := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	for i := 4; i < size-4; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		for _, p := range [][2]int{{i, 6}, {i, 7}, {i, size - 8}, {i, size - 7}, {4, i}, {5, i}, {size - 6, i}, {size - 5, i}} {
			img.SetNRGBA(p[0], p[1], frame)
		}
	}
	if recording {
		red := color.NRGBA{R: 0xff, G: 0x3b, B: 0x30, A: 0xff}
		cx, cy, r := size/2, size/2, 6
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
					img.SetNRGBA(x, y, red)
				}
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/kbinani/screenshot"
	"golang.org/x/image/tiff"
)

// Point is a location in virtual-screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Region is a normalized screen rectangle: Width and Height are never negative.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionFromPoints builds the normalized rectangle spanned by two arbitrary
// corner points, taking min/max independently per axis.
func RegionFromPoints(a, b Point) Region {
	minX, maxX := a.X, b.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := a.Y, b.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Exceeds reports whether both sides are strictly larger than span.
func (r Region) Exceeds(span int) bool {
	return r.Width > span && r.Height > span
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// FormatKind names an image encoding.
type FormatKind string

const (
	FormatPNG  FormatKind = "png"
	FormatJPEG FormatKind = "jpeg"
	FormatTIFF FormatKind = "tiff"
)

// Format selects the encoding for captured images. Quality applies to JPEG
// only and is expressed in [0,1].
type Format struct {
	Kind    FormatKind
	Quality float32
}

// ParseFormat maps a config value to a Format, defaulting to PNG.
func ParseFormat(value string, quality float32) Format {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "jpeg", "jpg":
		return Format{Kind: FormatJPEG, Quality: quality}
	case "tiff", "tif":
		return Format{Kind: FormatTIFF}
	default:
		return Format{Kind: FormatPNG}
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	switch f.Kind {
	case FormatJPEG:
		return "jpg"
	case FormatTIFF:
		return "tiff"
	default:
		return "png"
	}
}

// Encode serializes img in the requested format.
func Encode(img image.Image, f Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f.Kind {
	case FormatJPEG:
		q := int(f.Quality * 100)
		if q <= 0 || q > 100 {
			q = 90
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	case FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image as %s: %w", f.Extension(), err)
	}
	return buf.Bytes(), nil
}

// DisplayCount returns the number of active displays.
func DisplayCount() int {
	return screenshot.NumActiveDisplays()
}

// DisplayBounds returns the bounds of display id. Display 0 is the primary display.
func DisplayBounds(id int) (Region, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return Region{}, fmt.Errorf("no active displays found")
	}
	if id < 0 || id >= n {
		return Region{}, fmt.Errorf("display %d out of range (have %d)", id, n)
	}
	b := screenshot.GetDisplayBounds(id)
	return Region{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}, nil
}

// VirtualBounds returns the union of all active displays.
func VirtualBounds() (Region, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return Region{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return Region{X: union.Min.X, Y: union.Min.Y, Width: union.Dx(), Height: union.Dy()}, nil
}

// CaptureDisplay captures one display. A negative id captures the union of all displays.
func CaptureDisplay(id int) (*image.RGBA, error) {
	if id >= 0 {
		n := screenshot.NumActiveDisplays()
		if id >= n {
			return nil, fmt.Errorf("display %d out of range (have %d)", id, n)
		}
		return screenshot.CaptureDisplay(id)
	}
	union, err := VirtualBounds()
	if err != nil {
		return nil, err
	}
	return screenshot.CaptureRect(union.Rect())
}

// CaptureRegion captures a rectangle of the virtual screen, offset by the
// origin of display id when id is non-negative.
func CaptureRegion(region Region, id int) (*image.RGBA, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	bounds := region.Rect()
	if id >= 0 {
		origin, err := DisplayBounds(id)
		if err != nil {
			return nil, err
		}
		bounds = bounds.Add(image.Pt(origin.X, origin.Y))
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

// Package ocr recognizes text in saved captures.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"
	"os"
	"strings"

	_ "golang.org/x/image/tiff"

	"screen-capture/src/llm"
)

// BoundingBox locates a text block in image pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextBlock is one recognized line of text.
type TextBlock struct {
	Text        string      `json:"text"`
	Confidence  float32     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Engine recognizes text in the image at imagePath. languages are BCP 47
// tags ("en", "de-DE"); an empty list lets the engine decide.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, languages []string) ([]TextBlock, error)
}

// Text joins the blocks into newline separated text.
func Text(blocks []TextBlock) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, b.Text)
	}
	return strings.Join(lines, "\n")
}

// VisionEngine sends the image to a vision model. The model does not report
// positions, so every line gets an empty bounding box and confidence 1.
type VisionEngine struct {
	Client *llm.Client
}

func (e VisionEngine) Recognize(ctx context.Context, imagePath string, languages []string) ([]TextBlock, error) {
	if e.Client == nil {
		return nil, fmt.Errorf("vision client not configured")
	}
	data, err := loadPNG(imagePath)
	if err != nil {
		return nil, err
	}
	log.Printf("ocr: sending %s (%d bytes) to vision model", imagePath, len(data))
	text, err := e.Client.QueryVision(ctx, data, languages)
	if err != nil {
		return nil, err
	}
	var blocks []TextBlock
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		blocks = append(blocks, TextBlock{Text: line, Confidence: 1})
	}
	return blocks, nil
}

// loadPNG returns the file as PNG bytes, re-encoding other formats.
func loadPNG(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")) {
		return raw, nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

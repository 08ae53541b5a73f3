package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract"
)

var tesseractLanguages = map[string]string{
	"en": "eng", "de": "deu", "fr": "fra", "es": "spa", "it": "ita", "pt": "por",
	"nl": "nld", "pl": "pol", "ru": "rus", "uk": "ukr", "ja": "jpn", "ko": "kor",
	"zh": "chi_sim", "zh-hant": "chi_tra", "zh-tw": "chi_tra",
}

// TesseractLanguages maps BCP 47 tags to tesseract traineddata names.
// Unknown tags are passed through.
func TesseractLanguages(languages []string) []string {
	out := make([]string, 0, len(languages))
	seen := make(map[string]bool)
	for _, l := range languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		name, ok := tesseractLanguages[l]
		if !ok {
			base, _, _ := strings.Cut(l, "-")
			if name, ok = tesseractLanguages[base]; !ok {
				name = l
			}
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// TesseractEngine runs the local tesseract library and reports one block per
// text line with its box and confidence.
type TesseractEngine struct{}

func (TesseractEngine) Recognize(ctx context.Context, imagePath string, languages []string) ([]TextBlock, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if langs := TesseractLanguages(languages); len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	blocks := make([]TextBlock, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		blocks = append(blocks, TextBlock{
			Text:       text,
			Confidence: float32(b.Confidence / 100),
			BoundingBox: BoundingBox{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
		})
	}
	return blocks, nil
}

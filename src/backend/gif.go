package backend

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"log"
	"sync"
	"time"

	"github.com/nfnt/resize"
)

// MaxGIFFPS caps the frame rate of GIF recordings.
const MaxGIFFPS = 15

// grabFunc captures one frame of the recording target.
type grabFunc func() (*image.RGBA, error)

// gifRecorder samples frames on a fixed cadence until stopped.
type gifRecorder struct {
	grab      grabFunc
	interval  time.Duration
	maxHeight int

	mu     sync.Mutex
	frames []*image.Paletted
	errs   int

	cancel context.CancelFunc
	done   chan struct{}
}

func newGIFRecorder(grab grabFunc, cfg RecordingConfig) *gifRecorder {
	fps := cfg.FPS
	if fps > MaxGIFFPS {
		fps = MaxGIFFPS
	}
	if fps < 1 {
		fps = 1
	}
	return &gifRecorder{
		grab:      grab,
		interval:  time.Second / time.Duration(fps),
		maxHeight: cfg.Quality.MaxHeight(),
	}
}

// start captures the first frame synchronously so an unusable target fails
// the start request, then samples in the background.
func (r *gifRecorder) start() error {
	img, err := r.grab()
	if err != nil {
		return err
	}
	r.add(img)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)
	return nil
}

func (r *gifRecorder) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := r.grab()
			if err != nil {
				r.mu.Lock()
				r.errs++
				n := r.errs
				r.mu.Unlock()
				if n == 1 {
					log.Printf("recorder: frame capture failed: %v", err)
				}
				continue
			}
			r.add(img)
		}
	}
}

func (r *gifRecorder) add(img *image.RGBA) {
	var src image.Image = img
	if r.maxHeight > 0 && img.Bounds().Dy() > r.maxHeight {
		src = resize.Resize(0, uint(r.maxHeight), img, resize.Bilinear)
	}
	b := src.Bounds()
	p := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	draw.Draw(p, p.Rect, src, b.Min, draw.Src)

	r.mu.Lock()
	r.frames = append(r.frames, p)
	r.mu.Unlock()
}

// halt stops sampling and waits for the loop to exit.
func (r *gifRecorder) halt() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
}

func (r *gifRecorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// encode stops the recorder and returns the animated GIF.
func (r *gifRecorder) encode() ([]byte, error) {
	r.halt()
	r.mu.Lock()
	frames := r.frames
	r.frames = nil
	r.mu.Unlock()

	if len(frames) == 0 {
		return nil, errorf(ErrRecordingFailed, "no frames captured")
	}
	delay := int(r.interval / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}
	anim := &gif.GIF{Image: frames, Delay: make([]int, len(frames))}
	for i := range anim.Delay {
		anim.Delay[i] = delay
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

// discard stops the recorder and drops all frames.
func (r *gifRecorder) discard() {
	r.halt()
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

package backend

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/go-vgo/robotgo"

	"screen-capture/src/screenshot"
)

// minWindowSpan filters out tool windows and invisible helpers.
const minWindowSpan = 50

// Desktop is the live desktop: displays, windows and the pointer.
type Desktop interface {
	Grab(t Target) (*image.RGBA, screenshot.Point, error)
	Pointer() (screenshot.Point, bool)
	Displays() ([]DisplayInfo, error)
	Windows() ([]WindowInfo, error)
}

// liveDesktop reads the real screen through kbinani/screenshot and robotgo.
type liveDesktop struct{}

func (liveDesktop) Grab(t Target) (*image.RGBA, screenshot.Point, error) {
	switch t.Kind {
	case TargetFullscreen:
		var origin screenshot.Region
		var err error
		if t.DisplayID < 0 {
			origin, err = screenshot.VirtualBounds()
		} else {
			origin, err = screenshot.DisplayBounds(t.DisplayID)
		}
		if err != nil {
			return nil, screenshot.Point{}, err
		}
		img, err := screenshot.CaptureDisplay(t.DisplayID)
		return img, screenshot.Point{X: origin.X, Y: origin.Y}, err
	case TargetArea:
		origin := screenshot.Point{X: t.Area.X, Y: t.Area.Y}
		if t.DisplayID >= 0 {
			d, err := screenshot.DisplayBounds(t.DisplayID)
			if err != nil {
				return nil, screenshot.Point{}, err
			}
			origin.X += d.X
			origin.Y += d.Y
		}
		img, err := screenshot.CaptureRegion(t.Area, t.DisplayID)
		return img, origin, err
	case TargetWindow:
		r, err := windowBounds(t.WindowID)
		if err != nil {
			return nil, screenshot.Point{}, err
		}
		img, err := screenshot.CaptureRegion(r, AllDisplays)
		return img, screenshot.Point{X: r.X, Y: r.Y}, err
	}
	return nil, screenshot.Point{}, fmt.Errorf("unknown target kind %q", t.Kind)
}

func (liveDesktop) Pointer() (screenshot.Point, bool) {
	x, y := robotgo.GetMousePos()
	return screenshot.Point{X: x, Y: y}, true
}

func (liveDesktop) Displays() ([]DisplayInfo, error) {
	n := screenshot.DisplayCount()
	out := make([]DisplayInfo, 0, n)
	for i := 0; i < n; i++ {
		b, err := screenshot.DisplayBounds(i)
		if err != nil {
			return nil, err
		}
		out = append(out, DisplayInfo{ID: i, Bounds: b, IsPrimary: i == 0})
	}
	return out, nil
}

func (liveDesktop) Windows() ([]WindowInfo, error) {
	procs, err := robotgo.Process()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	self := os.Getpid()
	var out []WindowInfo
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		r, err := windowBounds(p.Pid)
		if err != nil || r.Width < minWindowSpan || r.Height < minWindowSpan {
			continue
		}
		title := robotgo.GetTitle(p.Pid)
		if title == "" {
			continue
		}
		out = append(out, WindowInfo{ID: p.Pid, Title: title, AppName: p.Name, Bounds: r})
	}
	return out, nil
}

func windowBounds(id int) (screenshot.Region, error) {
	x, y, w, h := robotgo.GetBounds(id)
	if w <= 0 || h <= 0 {
		return screenshot.Region{}, fmt.Errorf("window %d not found", id)
	}
	return screenshot.Region{X: x, Y: y, Width: w, Height: h}, nil
}

// cursorGlyph is an arrow pointer: 'X' outline, '.' fill.
var cursorGlyph = []string{
	"X",
	"XX",
	"X.X",
	"X..X",
	"X...X",
	"X....X",
	"X.....X",
	"X......X",
	"X.......X",
	"X....XXXX",
	"X..X..X",
	"X.X X..X",
	"XX  X..X",
	"     XX",
}

// drawCursor paints the pointer glyph with its tip at p (image coordinates).
func drawCursor(img *image.RGBA, p image.Point) {
	for dy, row := range cursorGlyph {
		for dx, c := range row {
			var col color.RGBA
			switch c {
			case 'X':
				col = color.RGBA{A: 0xff}
			case '.':
				col = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			default:
				continue
			}
			at := image.Pt(p.X+dx, p.Y+dy)
			if at.In(img.Bounds()) {
				img.SetRGBA(at.X, at.Y, col)
			}
		}
	}
}

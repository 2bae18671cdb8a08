package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

var (
	colorField  = color.RGBA{34, 139, 34, 255}
	colorFloor  = color.RGBA{139, 69, 19, 255}
	colorHoop   = color.RGBA{255, 0, 0, 255}
	colorBall   = color.RGBA{255, 165, 0, 255}
	colorTrail  = color.RGBA{255, 255, 255, 255}
	colorScored = color.RGBA{0, 255, 0, 255}
)

const (
	floorHeight = 50
	rimWidth    = 3
)

// Raster draws frames into an RGBA image. When dir is set, the final frame
// of every shot is written there as a PNG.
type Raster struct {
	img *image.RGBA
	dc  *gg.Context
	dir string
}

func NewRaster(width, height int, dir string) (*Raster, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create frames dir: %w", err)
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dc := gg.NewContextForRGBA(img)
	dc.SetFontFace(basicfont.Face7x13)
	return &Raster{img: img, dc: dc, dir: dir}, nil
}

// Image returns the last drawn frame. It is overwritten by the next Draw.
func (r *Raster) Image() *image.RGBA { return r.img }

// StatusText is the caption drawn in the top left corner of a frame.
func StatusText(f Frame) string {
	status := "MISSED"
	if f.Scored {
		status = "SCORED!"
	}
	return fmt.Sprintf("%s | Score: %d", status, f.Score)
}

// Draw paints the frame.
func (r *Raster) Draw(f Frame) *image.RGBA {
	dc := r.dc
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetColor(colorField)
	dc.Clear()
	dc.SetColor(colorFloor)
	dc.DrawRectangle(0, h-floorHeight, w, floorHeight)
	dc.Fill()

	hoop := f.Scene.Hoop
	dc.SetLineWidth(rimWidth)
	dc.SetColor(colorHoop)
	dc.DrawCircle(hoop.X, hoop.Y, hoop.Radius)
	dc.Stroke()
	dc.SetColor(colorFloor)
	dc.DrawLine(hoop.X-30, hoop.Y-50, hoop.X-20, hoop.Y)
	dc.DrawLine(hoop.X+30, hoop.Y-50, hoop.X+20, hoop.Y)
	dc.Stroke()

	if len(f.Trajectory) > 1 {
		dc.SetLineWidth(1)
		dc.SetColor(colorTrail)
		dc.MoveTo(float64(f.Trajectory[0][0]), float64(f.Trajectory[0][1]))
		for _, p := range f.Trajectory[1:] {
			dc.LineTo(float64(p[0]), float64(p[1]))
		}
		dc.Stroke()
	}

	dc.SetColor(colorBall)
	dc.DrawCircle(float64(int(f.X)), float64(int(f.Y)), f.Scene.BallRadius)
	dc.Fill()

	text := colorTrail
	if f.Scored {
		text = colorScored
	}
	dc.SetColor(text)
	dc.DrawStringAnchored(StatusText(f), 20, 20, 0, 1)
	return r.img
}

func (r *Raster) Render(f Frame) error {
	r.Draw(f)
	if r.dir == "" || !f.Final {
		return nil
	}
	return r.WritePNG(filepath.Join(r.dir, fmt.Sprintf("shot_%03d.png", f.Shot)))
}

func (r *Raster) WritePNG(path string) error {
	if err := r.dc.SavePNG(path); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (r *Raster) Close() error { return nil }

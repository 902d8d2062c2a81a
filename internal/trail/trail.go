// Package trail renders a recorded ghost path as a top-down PNG.
package trail

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"

	"ghost-loop/internal/game"
)

// Config sets the output size and padding in pixels
type Config struct {
	Width   int
	Height  int
	Padding float64
}

// DefaultConfig is a small square thumbnail
func DefaultConfig() Config {
	return Config{Width: 512, Height: 512, Padding: 24}
}

var (
	background = color.RGBA{12, 12, 28, 255}
	gridColor  = color.RGBA{30, 30, 45, 255}
	pathColor  = color.RGBA{120, 200, 255, 255}
	startColor = color.RGBA{90, 230, 120, 255}
	endColor   = color.RGBA{240, 90, 90, 255}
)

// Render draws the X/Z path of samples. The view is fitted to the path
// with equal scale on both axes; Z grows upwards.
func Render(samples []game.FrameSample, cfg Config) *gg.Context {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg = DefaultConfig()
	}
	dc := gg.NewContext(cfg.Width, cfg.Height)
	w, h := float64(cfg.Width), float64(cfg.Height)

	dc.SetColor(background)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := 0.0; x < w; x += 32 {
		dc.DrawLine(x, 0, x, h)
		dc.Stroke()
	}
	for y := 0.0; y < h; y += 32 {
		dc.DrawLine(0, y, w, y)
		dc.Stroke()
	}

	if len(samples) == 0 {
		return dc
	}

	project := fit(samples, w, h, cfg.Padding)

	dc.SetColor(pathColor)
	dc.SetLineWidth(2)
	for i, s := range samples {
		x, y := project(s.Position)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()

	sx, sy := project(samples[0].Position)
	dc.SetColor(startColor)
	dc.DrawCircle(sx, sy, 5)
	dc.Fill()

	ex, ey := project(samples[len(samples)-1].Position)
	dc.SetColor(endColor)
	dc.DrawCircle(ex, ey, 5)
	dc.Fill()

	return dc
}

// fit maps world X/Z into the padded image
func fit(samples []game.FrameSample, w, h, pad float64) func(game.Vec3) (float64, float64) {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		minX = math.Min(minX, s.Position.X)
		maxX = math.Max(maxX, s.Position.X)
		minZ = math.Min(minZ, s.Position.Z)
		maxZ = math.Max(maxZ, s.Position.Z)
	}
	span := math.Max(maxX-minX, maxZ-minZ)
	if span == 0 {
		span = 1
	}
	scale := math.Min(w-2*pad, h-2*pad) / span
	cx, cz := (minX+maxX)/2, (minZ+maxZ)/2

	return func(v game.Vec3) (float64, float64) {
		return w/2 + (v.X-cx)*scale, h/2 - (v.Z-cz)*scale
	}
}

// WritePNG renders samples and encodes the image to w
func WritePNG(w io.Writer, samples []game.FrameSample, cfg Config) error {
	if err := Render(samples, cfg).EncodePNG(w); err != nil {
		return fmt.Errorf("encode trail png: %w", err)
	}
	return nil
}

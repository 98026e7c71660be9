package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

type WatermarkOptions struct {
	Text    string
	Opacity float64 // 0..1
	Angle   float64 // degrees, clockwise
	Quality int
}

var (
	boldOnce sync.Once
	boldFont *opentype.Font
	boldErr  error
)

func loadBold() (*opentype.Font, error) {
	boldOnce.Do(func() {
		boldFont, boldErr = opentype.Parse(gobold.TTF)
	})
	return boldFont, boldErr
}

// FontSize scales the watermark text with the short side of the image.
func FontSize(w, h int) int {
	return max(30, min(w, h)/15)
}

// Watermark tiles opts.Text across img, rotates the tiling and composites it
// over the image. The result is always an RGB JPEG.
func Watermark(img image.Image, opts WatermarkOptions) ([]byte, error) {
	base := ToRGB(img)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()

	layer, err := textLayer(w, h, opts)
	if err != nil {
		return nil, err
	}

	draw.BiLinear.Transform(base, rotateAbout(layer.Bounds(), base.Bounds(), opts.Angle),
		layer, layer.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, base, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode watermark: %w", err)
	}
	return buf.Bytes(), nil
}

// textLayer draws the repeated text on a transparent square large enough to
// still cover the image after rotation.
func textLayer(w, h int, opts WatermarkOptions) (*image.RGBA, error) {
	f, err := loadBold()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(FontSize(w, h)),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	side := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	layer := image.NewRGBA(image.Rect(0, 0, side, side))

	alpha := uint8(math.Round(255 * math.Max(0, math.Min(1, opts.Opacity))))
	d := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: alpha}),
		Face: face,
	}

	textW := d.MeasureString(opts.Text).Ceil()
	metrics := face.Metrics()
	textH := metrics.Height.Ceil()
	stepX, stepY := textW+100, textH+100

	for y := metrics.Ascent.Ceil(); y < side+textH; y += stepY {
		for x := 0; x < side; x += stepX {
			d.Dot = fixed.P(x, y)
			d.DrawString(opts.Text)
		}
	}
	return layer, nil
}

// rotateAbout maps src onto dst, rotating by deg degrees clockwise around the
// centers of both rectangles.
func rotateAbout(src, dst image.Rectangle, deg float64) f64.Aff3 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	sx := float64(src.Min.X+src.Max.X) / 2
	sy := float64(src.Min.Y+src.Max.Y) / 2
	dx := float64(dst.Min.X+dst.Max.X) / 2
	dy := float64(dst.Min.Y+dst.Max.Y) / 2

	return f64.Aff3{
		cos, -sin, dx - cos*sx + sin*sy,
		sin, cos, dy - sin*sx - cos*sy,
	}
}

// Package imaging renders the derivatives shown to buyers: thumbnails and
// watermarked previews.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Rendition is an encoded derivative ready to be stored.
type Rendition struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Decode reads any registered format (JPEG, PNG, GIF, BMP, WebP).
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("decode image: empty bounds %v", b)
	}
	return img, format, nil
}

// HasAlpha reports whether the decoded source carried an alpha channel.
// Palette and grayscale sources are treated as opaque.
func HasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.NYCbCrA:
		return true
	default:
		return false
	}
}

// ToRGB flattens img onto a white background as an opaque RGBA image.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// FitSize scales (w, h) down to fit a max x max box, keeping aspect ratio.
// It never upscales.
func FitSize(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

// Thumbnail scales img to fit within size x size. Sources with alpha stay PNG,
// everything else becomes JPEG at the given quality.
func Thumbnail(img image.Image, size, quality int) (Rendition, error) {
	b := img.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), size)

	var buf bytes.Buffer
	if HasAlpha(img) {
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		if err := png.Encode(&buf, dst); err != nil {
			return Rendition{}, fmt.Errorf("encode thumbnail: %w", err)
		}
		return Rendition{Data: buf.Bytes(), ContentType: "image/png", Ext: ".png"}, nil
	}

	src := ToRGB(img)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return Rendition{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	return Rendition{Data: buf.Bytes(), ContentType: "image/jpeg", Ext: ".jpg"}, nil
}

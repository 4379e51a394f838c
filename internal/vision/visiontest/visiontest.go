// Package visiontest draws synthetic screen frames for the vision and
// pipeline tests.
package visiontest

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"sync"
)

// Glyph draws a w x h pattern of random 4px blocks. Equal seeds give equal glyphs.
func Glyph(seed uint64, w, h int) *image.Gray {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for by := 0; by < h; by += 4 {
		for bx := 0; bx < w; bx += 4 {
			c := color.Gray{Y: uint8(r.IntN(256))}
			draw.Draw(img, image.Rect(bx, by, bx+4, by+4), image.NewUniform(c), image.Point{}, draw.Src)
		}
	}
	return img
}

// Noise returns an RGBA frame covering bounds filled with low-contrast noise.
func Noise(seed uint64, bounds image.Rectangle) *image.RGBA {
	r := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := uint8(200 + r.IntN(40))
			img.SetRGBA(x, y, color.RGBA{v, v, v, 0xff})
		}
	}
	return img
}

// Blank returns a uniform white frame covering bounds.
func Blank(bounds image.Rectangle) *image.RGBA {
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, image.White, image.Point{}, draw.Src)
	return img
}

// Paste draws src onto dst with its top-left corner at at.
func Paste(dst draw.Image, src image.Image, at image.Point) {
	b := src.Bounds()
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(b.Size())}, src, b.Min, draw.Src)
}

// Clone copies img into a new RGBA frame with the same bounds.
func Clone(img image.Image) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Rect, img, img.Bounds().Min, draw.Src)
	return out
}

// barUnit is the width in pixels of one barcode module.
const barUnit = 4

// DrawText paints text into area as a machine-readable barcode: a black start
// bar one module wide, then eight modules per byte (most significant bit
// first, black for 1) and a terminating zero byte. Recognizer decodes it.
// The area is cleared to white first.
func DrawText(dst draw.Image, area image.Rectangle, text string) {
	draw.Draw(dst, area, image.White, image.Point{}, draw.Src)
	bar := func(i int) image.Rectangle {
		r := image.Rect(area.Min.X+i*barUnit, area.Min.Y, area.Min.X+(i+1)*barUnit, area.Max.Y)
		return r.Intersect(area)
	}
	draw.Draw(dst, bar(0), image.Black, image.Point{}, draw.Src)
	for i, c := range []byte(text) {
		for bit := 0; bit < 8; bit++ {
			if c&(0x80>>bit) != 0 {
				draw.Draw(dst, bar(1+i*8+bit), image.Black, image.Point{}, draw.Src)
			}
		}
	}
}

// TextWidth is the number of pixels DrawText needs for text.
func TextWidth(text string) int {
	return (1 + 8*(len(text)+1)) * barUnit
}

// Recognizer decodes DrawText barcodes along the middle pixel row of an
// image. It measures the start bar to learn the module width, so upscaled
// crops decode as well. Images without a barcode read as empty text.
type Recognizer struct {
	mu    sync.Mutex
	calls int
}

// Recognize decodes the barcode in img.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	b := img.Bounds()
	y := b.Min.Y + b.Dy()/2
	dark := func(x int) bool {
		g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
		return g.Y < 128
	}

	start := -1
	for x := b.Min.X; x < b.Max.X; x++ {
		if dark(x) {
			start = x
			break
		}
	}
	if start < 0 {
		return "", 0, nil
	}
	unit := 0
	for x := start; x < b.Max.X && dark(x); x++ {
		unit++
	}

	var out []byte
	for i := 0; ; i++ {
		var c byte
		for bit := 0; bit < 8; bit++ {
			x := start + (1+i*8+bit)*unit + unit/2
			if x >= b.Max.X {
				return string(out), 0.9, nil
			}
			if dark(x) {
				c |= 0x80 >> bit
			}
		}
		if c == 0 {
			return string(out), 0.9, nil
		}
		out = append(out, c)
	}
}

// Calls reports how many times Recognize ran.
func (r *Recognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

package textreader

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// grayscale returns a zero-origin grayscale copy of img.
func grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// autocontrast stretches the intensity range of g to the full 0..255 span in
// place. Flat images are left untouched.
func autocontrast(g *image.Gray) {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= lo {
		return
	}
	span := int(hi - lo)
	for i, v := range g.Pix {
		g.Pix[i] = uint8((int(v-lo)*255 + span/2) / span)
	}
}

// upscale resamples g by an integer factor.
func upscale(g *image.Gray, factor int) *image.Gray {
	if factor <= 1 {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, g.Rect.Dx()*factor, g.Rect.Dy()*factor))
	xdraw.CatmullRom.Scale(dst, dst.Rect, g, g.Rect, xdraw.Src, nil)
	return dst
}

// preprocess prepares a crop for the OCR engine.
func preprocess(img image.Image, factor int) *image.Gray {
	g := grayscale(img)
	autocontrast(g)
	return upscale(g, factor)
}

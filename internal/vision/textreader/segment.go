package textreader

import (
	"image"

	"github.com/xkilldash9x/unfollowed/api/schemas"
)

// inkThreshold separates foreground from background after autocontrast.
const inkThreshold = 128

// fixedBands slices bounds into full rows of height rowHeight, top to bottom.
func fixedBands(bounds image.Rectangle, rowHeight int) []schemas.Rect {
	var bands []schemas.Rect
	for y := bounds.Min.Y; y+rowHeight <= bounds.Max.Y; y += rowHeight {
		bands = append(bands, schemas.Rect{X: bounds.Min.X, Y: y, W: bounds.Dx(), H: rowHeight})
	}
	return bands
}

// gapBands splits img into bands of content separated by at least minGap
// blank pixel rows, using a horizontal projection of the binarised image.
func gapBands(img image.Image, minGap int) []schemas.Rect {
	b := img.Bounds()
	g := grayscale(img)
	autocontrast(g)

	inked := make([]bool, g.Rect.Dy())
	for y := range inked {
		row := g.Pix[y*g.Stride : y*g.Stride+g.Rect.Dx()]
		for _, v := range row {
			if v < inkThreshold {
				inked[y] = true
				break
			}
		}
	}

	var bands []schemas.Rect
	start, blank := -1, 0
	flush := func(end int) {
		if start >= 0 {
			bands = append(bands, schemas.Rect{X: b.Min.X, Y: b.Min.Y + start, W: b.Dx(), H: end - start})
		}
		start = -1
	}
	for y, ink := range inked {
		if ink {
			if start < 0 {
				start = y
			}
			blank = 0
			continue
		}
		blank++
		if blank == minGap {
			flush(y - minGap + 1)
		}
	}
	if start >= 0 {
		flush(len(inked) - blank)
	}
	return bands
}

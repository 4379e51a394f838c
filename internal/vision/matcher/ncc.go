package matcher

import (
	"image"
	"math"
)

const (
	// minVariance is the per-pixel variance under which a window counts as flat.
	minVariance = 1e-2
	// coarseWork is the scan cost (positions x template pixels) above which a
	// coarse pass on a downsampled pyramid level selects the positions to refine.
	coarseWork = 4_000_000
	// coarseSlack widens the threshold on the coarse level; averaging softens peaks.
	coarseSlack = 0.25
	// minCoarseSide keeps downsampled templates big enough to stay distinctive.
	minCoarseSide = 8
)

// plane is a zero-origin grayscale image as float64 samples.
type plane struct {
	w, h int
	pix  []float64
}

func planeFromGray(g *image.Gray) *plane {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	p := &plane{w: w, h: h, pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			p.pix[y*w+x] = float64(v)
		}
	}
	return p
}

// downsample box-averages f x f blocks.
func (p *plane) downsample(f int) *plane {
	w, h := p.w/f, p.h/f
	out := &plane{w: w, h: h, pix: make([]float64, w*h)}
	area := float64(f * f)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for j := 0; j < f; j++ {
				row := p.pix[(y*f+j)*p.w+x*f:]
				for i := 0; i < f; i++ {
					s += row[i]
				}
			}
			out.pix[y*w+x] = s / area
		}
	}
	return out
}

// integrals holds summed-area tables of the samples and of their squares.
type integrals struct {
	stride int
	sum    []float64
	sq     []float64
}

func newIntegrals(p *plane) *integrals {
	stride := p.w + 1
	in := &integrals{
		stride: stride,
		sum:    make([]float64, stride*(p.h+1)),
		sq:     make([]float64, stride*(p.h+1)),
	}
	for y := 0; y < p.h; y++ {
		var rs, rq float64
		for x := 0; x < p.w; x++ {
			v := p.pix[y*p.w+x]
			rs += v
			rq += v * v
			in.sum[(y+1)*stride+x+1] = in.sum[y*stride+x+1] + rs
			in.sq[(y+1)*stride+x+1] = in.sq[y*stride+x+1] + rq
		}
	}
	return in
}

func (in *integrals) window(x, y, w, h int) (sum, sq float64) {
	a := y*in.stride + x
	b := a + w
	c := (y+h)*in.stride + x
	d := c + w
	return in.sum[d] - in.sum[b] - in.sum[c] + in.sum[a],
		in.sq[d] - in.sq[b] - in.sq[c] + in.sq[a]
}

// kernel is a zero-mean template with its L2 norm.
type kernel struct {
	w, h int
	zm   []float64
	norm float64
}

func newKernel(p *plane) *kernel {
	n := float64(len(p.pix))
	var mean float64
	for _, v := range p.pix {
		mean += v
	}
	mean /= n

	k := &kernel{w: p.w, h: p.h, zm: make([]float64, len(p.pix))}
	var ss float64
	for i, v := range p.pix {
		d := v - mean
		k.zm[i] = d
		ss += d * d
	}
	k.norm = math.Sqrt(ss)
	return k
}

func (k *kernel) flat() bool {
	return k.norm*k.norm/float64(k.w*k.h) < minVariance
}

// score is the zero-mean normalized cross-correlation of k with the window
// of img at (x, y). Flat windows score 0.
func score(img *plane, in *integrals, k *kernel, x, y int) float64 {
	n := float64(k.w * k.h)
	s, q := in.window(x, y, k.w, k.h)
	variance := q - s*s/n
	if variance < minVariance*n {
		return 0
	}

	// The template is zero-mean, so the image mean drops out of the numerator.
	var dot float64
	for j := 0; j < k.h; j++ {
		row := img.pix[(y+j)*img.w+x : (y+j)*img.w+x+k.w]
		trow := k.zm[j*k.w : (j+1)*k.w]
		for i, t := range trow {
			dot += t * row[i]
		}
	}
	v := dot / (k.norm * math.Sqrt(variance))
	return math.Max(-1, math.Min(1, v))
}

type hit struct {
	x, y  int
	score float64
}

// scan returns every position of k over img scoring at least threshold.
func scan(img *plane, k *kernel, threshold float64) []hit {
	if k.w > img.w || k.h > img.h || k.flat() {
		return nil
	}

	nx, ny := img.w-k.w+1, img.h-k.h+1
	in := newIntegrals(img)

	f := coarseFactor(nx*ny*k.w*k.h, k.w, k.h)
	if f == 1 {
		var hits []hit
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				if s := score(img, in, k, x, y); s >= threshold {
					hits = append(hits, hit{x, y, s})
				}
			}
		}
		return hits
	}

	// Coarse to fine: score the downsampled pair, then refine every
	// surviving coarse position over its f x f neighbourhood.
	cimg := img.downsample(f)
	ck := newKernel(unzero(k).downsample(f))
	coarse := scan(cimg, ck, threshold-coarseSlack)

	visited := make([]bool, nx*ny)
	var hits []hit
	for _, c := range coarse {
		for y := max(0, c.y*f-f+1); y <= min(ny-1, c.y*f+f-1); y++ {
			for x := max(0, c.x*f-f+1); x <= min(nx-1, c.x*f+f-1); x++ {
				if visited[y*nx+x] {
					continue
				}
				visited[y*nx+x] = true
				if s := score(img, in, k, x, y); s >= threshold {
					hits = append(hits, hit{x, y, s})
				}
			}
		}
	}
	return hits
}

// coarseFactor picks the pyramid step for a scan of the given cost.
func coarseFactor(work, tw, th int) int {
	if work <= coarseWork {
		return 1
	}
	f := 1
	for f < 4 && min(tw, th)/(f*2) >= minCoarseSide {
		f *= 2
	}
	return f
}

// unzero restores a plane from a kernel. The mean offset does not matter to
// the correlation, so the zero-mean samples are used as-is.
func unzero(k *kernel) *plane {
	return &plane{w: k.w, h: k.h, pix: k.zm}
}

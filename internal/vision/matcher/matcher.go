// Package matcher finds instances of reference templates in screen images
// using zero-mean normalized cross-correlation over grayscale pixels,
// probing several template scales and suppressing overlapping hits.
package matcher

import (
	"image"
	"image/draw"
	"iter"
	"math"
	"sort"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Matcher is stateless apart from its tuning and safe for concurrent use.
type Matcher struct {
	scales    []float64
	nmsRadius int
	logger    *zap.Logger
}

// New creates a Matcher probing the given template scales. Candidates of the
// same template whose centres lie within nmsRadius pixels collapse into one.
func New(scales []float64, nmsRadius int, logger *zap.Logger) *Matcher {
	if len(scales) == 0 {
		scales = []float64{1.0}
	}
	return &Matcher{scales: scales, nmsRadius: nmsRadius, logger: logger.Named("matcher")}
}

// Find yields the instances of tpl in img scoring at least threshold, in
// descending confidence. Boxes are in img's coordinate space. The sequence
// is lazy: matching runs when iteration starts and again on every restart.
func (m *Matcher) Find(img image.Image, tpl *Template, threshold float64) iter.Seq[schemas.MatchCandidate] {
	return func(yield func(schemas.MatchCandidate) bool) {
		for _, c := range m.match(img, tpl, threshold) {
			if !yield(c) {
				return
			}
		}
	}
}

// Best returns the highest-confidence instance of tpl in img.
func (m *Matcher) Best(img image.Image, tpl *Template, threshold float64) (schemas.MatchCandidate, bool) {
	for c := range m.Find(img, tpl, threshold) {
		return c, true
	}
	return schemas.MatchCandidate{}, false
}

// Any reports whether any of the templates is present in img.
func (m *Matcher) Any(img image.Image, tpls []*Template, threshold float64) (schemas.MatchCandidate, bool) {
	for _, tpl := range tpls {
		if c, ok := m.Best(img, tpl, threshold); ok {
			return c, true
		}
	}
	return schemas.MatchCandidate{}, false
}

type scored struct {
	hit
	w, h  int
	scale float64
}

func (m *Matcher) match(img image.Image, tpl *Template, threshold float64) []schemas.MatchCandidate {
	if img == nil || tpl == nil || img.Bounds().Empty() {
		return nil
	}
	origin := img.Bounds().Min
	src := planeFromGray(toGray(img))

	results := make([][]scored, len(m.scales))
	var g errgroup.Group
	for i, s := range m.scales {
		g.Go(func() error {
			k := scaledKernel(tpl, s)
			if k == nil {
				return nil
			}
			hits := scan(src, k, threshold)
			out := make([]scored, len(hits))
			for j, h := range hits {
				out[j] = scored{hit: h, w: k.w, h: k.h, scale: s}
			}
			results[i] = out
			return nil
		})
	}
	// Workers never fail.
	_ = g.Wait()

	var all []scored
	for _, r := range results {
		all = append(all, r...)
	}
	kept := suppress(all, m.nmsRadius)

	out := make([]schemas.MatchCandidate, len(kept))
	for i, c := range kept {
		out[i] = schemas.MatchCandidate{
			Label:      tpl.Label,
			Confidence: c.score,
			Box:        schemas.Rect{X: origin.X + c.x, Y: origin.Y + c.y, W: c.w, H: c.h},
			Scale:      c.scale,
		}
	}
	if len(out) > 0 {
		m.logger.Debug("Template matched.",
			zap.String("label", tpl.Label),
			zap.Int("candidates", len(out)),
			zap.Float64("best", out[0].Confidence))
	}
	return out
}

// scaledKernel resamples tpl by s. It returns nil when the result degenerates.
func scaledKernel(tpl *Template, s float64) *kernel {
	w, h := tpl.Size()
	sw, sh := int(math.Round(float64(w)*s)), int(math.Round(float64(h)*s))
	if sw < 2 || sh < 2 {
		return nil
	}
	if sw == w && sh == h {
		return newKernel(planeFromGray(tpl.gray))
	}
	dst := image.NewGray(image.Rect(0, 0, sw, sh))
	xdraw.CatmullRom.Scale(dst, dst.Rect, tpl.gray, tpl.gray.Rect, draw.Src, nil)
	return newKernel(planeFromGray(dst))
}

// suppress keeps the best candidate in every nmsRadius neighbourhood.
func suppress(all []scored, radius int) []scored {
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.y != b.y {
			return a.y < b.y
		}
		if a.x != b.x {
			return a.x < b.x
		}
		return a.scale < b.scale
	})

	r2 := radius * radius
	var kept []scored
	for _, c := range all {
		cx, cy := 2*c.x+c.w, 2*c.y+c.h
		suppressed := false
		for _, k := range kept {
			// Centres are compared at double resolution to stay in integers.
			dx, dy := cx-(2*k.x+k.w), cy-(2*k.y+k.h)
			if dx*dx+dy*dy <= 4*r2 {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

// Region restricts img to r. Pixels outside img are dropped.
func Region(img image.Image, r schemas.Rect) image.Image {
	clip := r.Image().Intersect(img.Bounds())
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(clip)
	}
	out := image.NewRGBA(clip)
	draw.Draw(out, clip, img, clip.Min, draw.Src)
	return out
}

package matcher

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/vision/visiontest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newMatcher(scales ...float64) *Matcher {
	if len(scales) == 0 {
		scales = []float64{1.0}
	}
	return New(scales, 12, zap.NewNop())
}

func collect(m *Matcher, img image.Image, tpl *Template, threshold float64) []schemas.MatchCandidate {
	var out []schemas.MatchCandidate
	for c := range m.Find(img, tpl, threshold) {
		out = append(out, c)
	}
	return out
}

func TestFindExactInstance(t *testing.T) {
	glyph := visiontest.Glyph(7, 24, 16)
	frame := visiontest.Noise(1, image.Rect(100, 200, 260, 300))
	visiontest.Paste(frame, glyph, image.Pt(150, 240))

	got := collect(newMatcher(), frame, NewTemplate("following", glyph, false), 0.8)
	require.Len(t, got, 1)
	assert.Equal(t, "following", got[0].Label)
	assert.Equal(t, schemas.Rect{X: 150, Y: 240, W: 24, H: 16}, got[0].Box, "boxes are in frame coordinates")
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-6)
	assert.Equal(t, 1.0, got[0].Scale)
}

func TestFindOrdersByConfidenceAndSuppresses(t *testing.T) {
	glyph := visiontest.Glyph(3, 20, 20)
	frame := visiontest.Noise(2, image.Rect(0, 0, 200, 120))
	visiontest.Paste(frame, glyph, image.Pt(20, 20))

	// A degraded copy: the same glyph with one block inverted.
	degraded := visiontest.Clone(glyph)
	for y := 8; y < 12; y++ {
		for x := 8; x < 12; x++ {
			c := degraded.RGBAAt(x, y)
			c.R, c.G, c.B = 255-c.R, 255-c.G, 255-c.B
			degraded.SetRGBA(x, y, c)
		}
	}
	visiontest.Paste(frame, degraded, image.Pt(140, 80))

	got := collect(newMatcher(), frame, NewTemplate("btn", glyph, false), 0.7)
	require.Len(t, got, 2, "neighbouring positions collapse into one candidate per instance")
	assert.Equal(t, schemas.Point{X: 30, Y: 30}, got[0].Box.Center())
	assert.Equal(t, schemas.Point{X: 150, Y: 90}, got[1].Box.Center())
	assert.Greater(t, got[0].Confidence, got[1].Confidence)
}

func TestFindBelowThresholdIsEmpty(t *testing.T) {
	frame := visiontest.Noise(4, image.Rect(0, 0, 120, 80))
	got := collect(newMatcher(), frame, NewTemplate("btn", visiontest.Glyph(5, 16, 16), false), 0.8)
	assert.Empty(t, got)

	_, ok := newMatcher().Best(frame, NewTemplate("btn", visiontest.Glyph(5, 16, 16), false), 0.8)
	assert.False(t, ok)
}

func TestFindFlatInputsScoreZero(t *testing.T) {
	blank := visiontest.Blank(image.Rect(0, 0, 80, 60))
	flatTpl := NewTemplate("flat", visiontest.Blank(image.Rect(0, 0, 10, 10)), false)

	assert.Empty(t, collect(newMatcher(), blank, flatTpl, 0.1), "flat template")
	assert.Empty(t, collect(newMatcher(), blank, NewTemplate("g", visiontest.Glyph(1, 12, 12), false), 0.1), "flat frame")
}

func TestFindTemplateLargerThanImage(t *testing.T) {
	frame := visiontest.Noise(4, image.Rect(0, 0, 10, 10))
	assert.Empty(t, collect(newMatcher(), frame, NewTemplate("big", visiontest.Glyph(1, 32, 32), false), 0.5))
}

func TestFindMultiScale(t *testing.T) {
	glyph := visiontest.Glyph(11, 40, 24)
	scaled := image.NewGray(image.Rect(0, 0, 44, 26))
	xdraw.CatmullRom.Scale(scaled, scaled.Rect, glyph, glyph.Rect, xdraw.Src, nil)

	frame := visiontest.Noise(6, image.Rect(0, 0, 160, 100))
	visiontest.Paste(frame, scaled, image.Pt(60, 40))
	tpl := NewTemplate("btn", glyph, false)

	best, ok := newMatcher(0.9, 1.0, 1.1).Best(frame, tpl, 0.8)
	require.True(t, ok)
	assert.Equal(t, 1.1, best.Scale)
	assert.Equal(t, schemas.Rect{X: 60, Y: 40, W: 44, H: 26}, best.Box)
	assert.InDelta(t, 1.0, best.Confidence, 1e-6)

	_, ok = newMatcher(1.0).Best(frame, tpl, 0.95)
	assert.False(t, ok, "the unscaled template alone does not reach 0.95")
}

func TestFindCoarseToFine(t *testing.T) {
	glyph := visiontest.Glyph(21, 48, 40)
	frame := visiontest.Noise(8, image.Rect(0, 0, 420, 300))
	visiontest.Paste(frame, glyph, image.Pt(203, 141))

	best, ok := newMatcher().Best(frame, NewTemplate("popup", glyph, true), 0.8)
	require.True(t, ok)
	assert.Equal(t, schemas.Rect{X: 203, Y: 141, W: 48, H: 40}, best.Box)
	assert.InDelta(t, 1.0, best.Confidence, 1e-6)
}

func TestFindIsLazyAndRestartable(t *testing.T) {
	glyph := visiontest.Glyph(13, 16, 16)
	frame := visiontest.Noise(9, image.Rect(0, 0, 200, 60))
	for _, x := range []int{10, 80, 150} {
		visiontest.Paste(frame, glyph, image.Pt(x, 20))
	}
	seq := newMatcher().Find(frame, NewTemplate("btn", glyph, false), 0.9)

	var first []schemas.MatchCandidate
	for c := range seq {
		first = append(first, c)
		break
	}
	var all []schemas.MatchCandidate
	for c := range seq {
		all = append(all, c)
	}
	require.Len(t, first, 1)
	require.Len(t, all, 3)
	assert.Equal(t, first[0], all[0])
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Confidence, all[i].Confidence)
	}
}

func TestAny(t *testing.T) {
	glyph := visiontest.Glyph(17, 20, 12)
	frame := visiontest.Noise(10, image.Rect(0, 0, 100, 50))
	visiontest.Paste(frame, glyph, image.Pt(30, 20))
	m := newMatcher()

	c, ok := m.Any(frame, []*Template{NewTemplate("a", visiontest.Glyph(1, 20, 12), true), NewTemplate("b", glyph, true)}, 0.9)
	require.True(t, ok)
	assert.Equal(t, "b", c.Label)

	_, ok = m.Any(frame, nil, 0.9)
	assert.False(t, ok)
}

func TestRegion(t *testing.T) {
	frame := visiontest.Noise(1, image.Rect(100, 100, 300, 200))
	sub := Region(frame, schemas.Rect{X: 150, Y: 180, W: 400, H: 50})
	assert.Equal(t, image.Rect(150, 180, 300, 200), sub.Bounds())
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, seed uint64) {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, visiontest.Glyph(seed, 24, 16)))
		require.NoError(t, f.Close())
	}
	write("following.png", 1)
	write("follow.png", 2)
	write("confirm.png", 3)
	write("blocked.png", 4)

	set, err := LoadSet(dir, config.TemplatesConfig{
		Following: "following.png",
		Follow:    "follow.png",
		Confirm:   "confirm.png",
		// Unfollowing flips the button to "follow".
		AfterUnfollow: "follow.png",
		Block:         []string{"blocked.png"},
	})
	require.NoError(t, err)

	assert.Same(t, set.Following, set.Button(schemas.ActionUnfollow))
	assert.Same(t, set.Follow, set.Button(schemas.ActionFollow))
	assert.Equal(t, "after_unfollow", set.After(schemas.ActionUnfollow).Label)
	assert.Nil(t, set.After(schemas.ActionFollow))
	assert.True(t, set.Confirm.WideScope)
	require.Len(t, set.Block, 1)
	assert.True(t, set.Block[0].WideScope)

	_, err = LoadSet(dir, config.TemplatesConfig{Following: "following.png", Follow: "follow.png", Confirm: "missing.png"})
	assert.Error(t, err)
}

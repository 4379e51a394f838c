package locator

import (
	"context"
	"image"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/vision/matcher"
	"github.com/xkilldash9x/unfollowed/internal/vision/textreader"
	"github.com/xkilldash9x/unfollowed/internal/vision/visiontest"
	"go.uber.org/zap"
)

const rowHeight = 72

var region = schemas.Rect{X: 540, Y: 220, W: 840, H: 4 * rowHeight}

var (
	followingGlyph = visiontest.Glyph(101, 96, 32)
	followGlyph    = visiontest.Glyph(202, 96, 32)
)

func templates() *matcher.Set {
	return &matcher.Set{
		Following:     matcher.NewTemplate("following", followingGlyph, false),
		Follow:        matcher.NewTemplate("follow", followGlyph, false),
		Confirm:       matcher.NewTemplate("confirm", visiontest.Glyph(303, 64, 24), true),
		AfterUnfollow: matcher.NewTemplate("after_unfollow", followGlyph, false),
		AfterFollow:   matcher.NewTemplate("after_follow", followingGlyph, false),
	}
}

func newLocator() *Locator {
	reader := textreader.New(&visiontest.Recognizer{}, textreader.Options{
		Segmentation: textreader.SegmentFixed,
		RowHeight:    rowHeight,
		OCRRegion:    config.OCRRegion{OffsetX: 80, OffsetY: 12, Width: 320, Height: 32},
		Upscale:      1,
	}, zap.NewNop())
	return New(reader, matcher.New([]float64{1.0}, 12, zap.NewNop()), templates(), region,
		Options{MatchThreshold: 0.8, ConfirmThreshold: 0.9, BandTolerance: 8}, zap.NewNop())
}

type row struct {
	name   string
	button image.Image
}

func rowTop(i int) int { return region.Y + i*rowHeight }

func buttonAt(i int) image.Point { return image.Pt(region.X+700, rowTop(i)+20) }

func frame(rows ...row) *image.RGBA {
	img := visiontest.Blank(region.Image())
	for i, r := range rows {
		if r.name != "" {
			top := rowTop(i)
			visiontest.DrawText(img, image.Rect(region.X+80, top+12, region.X+400, top+44), r.name)
		}
		if r.button != nil {
			visiontest.Paste(img, r.button, buttonAt(i))
		}
	}
	return img
}

func unfollow(name string) schemas.Target {
	return schemas.Target{Username: name, Action: schemas.ActionUnfollow}
}

func TestResolve(t *testing.T) {
	shot := frame(
		row{"bob", followingGlyph},
		row{"alice", followingGlyph},
		row{"carol", followingGlyph},
		row{"dave", followingGlyph},
	)

	got, err := newLocator().Resolve(context.Background(), shot, unfollow("alice"))
	require.NoError(t, err)

	wantButton := schemas.Rect{X: region.X + 700, Y: rowTop(1) + 20, W: 96, H: 32}
	assert.Equal(t, wantButton, got.ButtonBox)
	assert.Equal(t, wantButton.Center(), got.ClickPoint)
	assert.Equal(t, schemas.Rect{X: region.X, Y: rowTop(1), W: region.W, H: rowHeight}, got.RowBox)
	assert.True(t, region.Contains(got.ClickPoint))
	assert.True(t, got.ButtonBox.Contains(got.ClickPoint))
	assert.Equal(t, 1.0, got.Similarity)
	assert.InDelta(t, 1.0, got.RowConfidence, 1e-6)
}

func TestResolveIgnoresTargetCase(t *testing.T) {
	shot := frame(
		row{"bob", followingGlyph},
		row{"bill", followingGlyph},
		row{"ally", followingGlyph},
		row{"dave", followingGlyph},
	)
	l := newLocator()

	for i, name := range []string{"BILL", "Ally"} {
		got, err := l.Resolve(context.Background(), shot, unfollow(name))
		require.NoError(t, err, name)
		assert.Equal(t, rowTop(i+1), got.RowBox.Y, name)
		assert.Equal(t, 1.0, got.Similarity, name)
	}
}

func TestResolveFollowUsesFollowButton(t *testing.T) {
	shot := frame(
		row{"alice", followingGlyph},
		row{"erin", followGlyph},
		row{"carol", followingGlyph},
		row{"dave", followingGlyph},
	)
	l := newLocator()

	got, err := l.Resolve(context.Background(), shot, schemas.Target{Username: "erin", Action: schemas.ActionFollow})
	require.NoError(t, err)
	assert.Equal(t, rowTop(1)+20, got.ButtonBox.Y)

	_, err = l.Resolve(context.Background(), shot, unfollow("erin"))
	assert.ErrorIs(t, err, schemas.ErrNotFound, "erin's row shows the follow button, not following")
}

func TestResolveNotFound(t *testing.T) {
	full := func(second row) *image.RGBA {
		return frame(row{"bob", followingGlyph}, second, row{"carol", followingGlyph}, row{"dave", followingGlyph})
	}

	tests := []struct {
		name string
		shot *image.RGBA
	}{
		{"absent", full(row{"erin", followingGlyph})},
		{"ocr confusion", full(row{"aiice", followingGlyph})},
		{"row without button", full(row{"alice", nil})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newLocator().Resolve(context.Background(), tt.shot, unfollow("alice"))
			assert.ErrorIs(t, err, schemas.ErrNotFound)
			assert.Nil(t, got)
		})
	}
}

func TestResolveIgnoresNeighbouringButtons(t *testing.T) {
	shot := frame(
		row{"bob", followingGlyph},
		row{"alice", nil},
		row{"carol", followingGlyph},
		row{"dave", followingGlyph},
	)
	_, err := newLocator().Resolve(context.Background(), shot, unfollow("alice"))
	assert.ErrorIs(t, err, schemas.ErrNotFound)
}

func TestResolveLowConfidence(t *testing.T) {
	shot := frame(row{"bob", followingGlyph}, row{"", nil}, row{"carol", followingGlyph})

	_, err := newLocator().Resolve(context.Background(), shot, unfollow("alice"))
	assert.ErrorIs(t, err, schemas.ErrLowConfidence)

	got, err := newLocator().Resolve(context.Background(), shot, unfollow("carol"))
	require.NoError(t, err, "a partial read that contains the target is good enough")
	assert.Equal(t, rowTop(2), got.RowBox.Y)
}

func TestResolveDuplicateRowsPickTopmost(t *testing.T) {
	shot := frame(
		row{"bob", followingGlyph},
		row{"alice", followingGlyph},
		row{"carol", followingGlyph},
		row{"alice", followingGlyph},
	)
	got, err := newLocator().Resolve(context.Background(), shot, unfollow("alice"))
	require.NoError(t, err)
	assert.Equal(t, rowTop(1), got.RowBox.Y)
}

func TestVerifyRow(t *testing.T) {
	rows := []row{{"bob", followingGlyph}, {"alice", followingGlyph}, {"carol", followingGlyph}, {"dave", followingGlyph}}
	l := newLocator()
	resolved, err := l.Resolve(context.Background(), frame(rows...), unfollow("alice"))
	require.NoError(t, err)

	ok, err := l.VerifyRow(context.Background(), frame(rows...), resolved)
	require.NoError(t, err)
	assert.True(t, ok)

	scrolled := []row{{"alice", followingGlyph}, {"bob", followingGlyph}, {"carol", followingGlyph}, {"dave", followingGlyph}}
	ok, err = l.VerifyRow(context.Background(), frame(scrolled...), resolved)
	require.NoError(t, err)
	assert.False(t, ok, "another name now occupies the row")

	noButton := []row{{"bob", followingGlyph}, {"alice", nil}, {"carol", followingGlyph}, {"dave", followingGlyph}}
	ok, err = l.VerifyRow(context.Background(), frame(noButton...), resolved)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestButtonGone(t *testing.T) {
	rows := []row{{"bob", followingGlyph}, {"alice", followingGlyph}, {"carol", followingGlyph}, {"dave", followingGlyph}}
	l := newLocator()
	resolved, err := l.Resolve(context.Background(), frame(rows...), unfollow("alice"))
	require.NoError(t, err)

	assert.False(t, l.ButtonGone(frame(rows...), resolved))

	rows[1].button = followGlyph
	assert.True(t, l.ButtonGone(frame(rows...), resolved))
}

// layout is populated from fuzz input.
type layout struct {
	Names   [4]string
	Buttons [4]uint8
	Target  string
	Follow  bool
}

func sanitize(s string) string {
	s = textreader.CleanUsername(s)
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

// FuzzResolveNeverFabricatesClickPoints checks the locator's safety invariant
// over arbitrary list layouts: a resolved click point always lies in the list
// region and on a button in a row that names the target.
func FuzzResolveNeverFabricatesClickPoints(f *testing.F) {
	f.Add([]byte("alice bob carol dave"))
	f.Add([]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	l := newLocator()
	f.Fuzz(func(t *testing.T, data []byte) {
		var lay layout
		if err := fuzz.NewConsumer(data).GenerateStruct(&lay); err != nil {
			return
		}

		rows := make([]row, 4)
		for i := range rows {
			rows[i].name = sanitize(lay.Names[i])
			switch lay.Buttons[i] % 3 {
			case 1:
				rows[i].button = followingGlyph
			case 2:
				rows[i].button = followGlyph
			}
		}
		target := schemas.Target{Username: sanitize(lay.Target), Action: schemas.ActionUnfollow}
		if lay.Follow {
			target.Action = schemas.ActionFollow
		}
		if target.Username == "" {
			return
		}

		got, err := l.Resolve(context.Background(), frame(rows...), target)
		if err != nil {
			require.Nil(t, got)
			return
		}
		require.True(t, region.Contains(got.ClickPoint))
		require.True(t, got.ButtonBox.Contains(got.ClickPoint))
		require.GreaterOrEqual(t, got.Similarity, 0.9)
		require.True(t, got.RowBox.Contains(got.ClickPoint))
	})
}

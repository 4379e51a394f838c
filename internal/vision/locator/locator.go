// Package locator turns a target username into a verified click point by
// combining the text reader (which row?) and the matcher (which button in
// that row?). It never guesses: any doubt ends in schemas.ErrNotFound.
package locator

import (
	"context"
	"fmt"
	"image"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/vision/matcher"
	"github.com/xkilldash9x/unfollowed/internal/vision/textreader"
	"go.uber.org/zap"
)

// RowReader is the part of the text reader the locator needs.
type RowReader interface {
	ReadRows(ctx context.Context, img image.Image) (textreader.RowsResult, error)
	ReadBand(ctx context.Context, img image.Image, band schemas.Rect) (schemas.TextRow, bool, error)
}

// Options tunes the locator.
type Options struct {
	MatchThreshold   float64
	ConfirmThreshold float64
	BandTolerance    int
}

// Locator resolves targets inside a fixed list region.
type Locator struct {
	reader    RowReader
	matcher   *matcher.Matcher
	templates *matcher.Set
	region    schemas.Rect
	opts      Options
	logger    *zap.Logger
}

// New creates a Locator for the list region. Screenshots passed to it must
// carry screen coordinates, as produced by the capture package.
func New(reader RowReader, m *matcher.Matcher, templates *matcher.Set, region schemas.Rect, opts Options, logger *zap.Logger) *Locator {
	return &Locator{
		reader:    reader,
		matcher:   m,
		templates: templates,
		region:    region,
		opts:      opts,
		logger:    logger.Named("locator"),
	}
}

// Region returns the list region.
func (l *Locator) Region() schemas.Rect { return l.region }

// Resolve finds target's row in screenshot and the action button in it.
func (l *Locator) Resolve(ctx context.Context, screenshot image.Image, target schemas.Target) (*schemas.ResolvedTarget, error) {
	res, err := l.reader.ReadRows(ctx, screenshot)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	row, sim, found := l.bestRow(res.Rows, target.Username)
	if !found {
		if res.LowConfidence {
			return nil, fmt.Errorf("%w: read %d of %d rows", schemas.ErrLowConfidence, len(res.Rows), res.Expected)
		}
		return nil, fmt.Errorf("%w: no row reads %q", schemas.ErrNotFound, target.Username)
	}

	band := l.band(row.Box, screenshot.Bounds())
	button, ok := l.findButton(screenshot, band, target.Action)
	if !ok {
		return nil, fmt.Errorf("%w: no %s button beside %q", schemas.ErrNotFound, target.Action, target.Username)
	}

	click := button.Box.Center()
	if !band.Contains(click) || !l.region.Contains(click) || !button.Box.Contains(click) {
		return nil, fmt.Errorf("%w: click point %s escapes row band %s", schemas.ErrNotFound, click, band)
	}

	resolved := &schemas.ResolvedTarget{
		Target:        target,
		ClickPoint:    click,
		RowConfidence: min(sim, button.Confidence),
		RowBox:        row.Box,
		ButtonBox:     button.Box,
		Similarity:    sim,
	}
	l.logger.Debug("Resolved target.",
		zap.String("target", target.Username),
		zap.String("read", row.Text),
		zap.Float64("similarity", sim),
		zap.Float64("button_confidence", button.Confidence),
		zap.Stringer("click", click))
	return resolved, nil
}

// VerifyRow re-reads the resolved row in a fresh screenshot and checks that
// it still names the target and still shows the button under the click point.
func (l *Locator) VerifyRow(ctx context.Context, screenshot image.Image, resolved *schemas.ResolvedTarget) (bool, error) {
	row, ok, err := l.reader.ReadBand(ctx, screenshot, resolved.RowBox)
	if err != nil {
		return false, fmt.Errorf("re-read row: %w", err)
	}
	if !ok {
		l.logger.Debug("Row is empty on re-read.", zap.String("target", resolved.Target.Username))
		return false, nil
	}
	if sim := textreader.Similarity(row.Text, resolved.Target.Username); sim < l.opts.ConfirmThreshold {
		l.logger.Debug("Row no longer names the target.",
			zap.String("target", resolved.Target.Username),
			zap.String("read", row.Text),
			zap.Float64("similarity", sim))
		return false, nil
	}

	button, ok := l.findButton(screenshot, l.band(resolved.RowBox, screenshot.Bounds()), resolved.Target.Action)
	if !ok || !button.Box.Contains(resolved.ClickPoint) {
		l.logger.Debug("Button moved away from the click point.", zap.String("target", resolved.Target.Username))
		return false, nil
	}
	return true, nil
}

// ButtonGone reports whether the row no longer shows the button that starts
// kind, or already shows the button the action leaves behind.
func (l *Locator) ButtonGone(screenshot image.Image, resolved *schemas.ResolvedTarget) bool {
	band := l.band(resolved.RowBox, screenshot.Bounds())
	if after := l.templates.After(resolved.Target.Action); after != nil {
		if _, ok := l.matcher.Best(matcher.Region(screenshot, band), after, l.opts.MatchThreshold); ok {
			return true
		}
	}
	c, ok := l.findButton(screenshot, band, resolved.Target.Action)
	return !ok || !c.Box.Overlaps(resolved.ButtonBox)
}

// bestRow picks the most similar row at or above the confirm threshold.
// Rows arrive top to bottom, so ties keep the topmost.
func (l *Locator) bestRow(rows []schemas.TextRow, username string) (schemas.TextRow, float64, bool) {
	var (
		best    schemas.TextRow
		bestSim float64
		found   bool
	)
	for _, row := range rows {
		sim := textreader.Similarity(row.Text, username)
		if sim < l.opts.ConfirmThreshold {
			continue
		}
		if !found || sim > bestSim {
			best, bestSim, found = row, sim, true
		}
	}
	return best, bestSim, found
}

// band is the row box grown by the tolerance, spanning the region width and
// clipped to the region and the screenshot.
func (l *Locator) band(row schemas.Rect, bounds image.Rectangle) schemas.Rect {
	grown := row.InsetY(l.opts.BandTolerance)
	band := schemas.Rect{X: l.region.X, Y: grown.Y, W: l.region.W, H: grown.H}
	return band.Intersect(l.region).Intersect(schemas.RectFromImage(bounds))
}

// findButton returns the best instance of kind's button lying entirely in band.
func (l *Locator) findButton(screenshot image.Image, band schemas.Rect, kind schemas.ActionKind) (schemas.MatchCandidate, bool) {
	if band.Empty() {
		return schemas.MatchCandidate{}, false
	}
	tpl := l.templates.Button(kind)
	for c := range l.matcher.Find(matcher.Region(screenshot, band), tpl, l.opts.MatchThreshold) {
		if c.Box.Intersect(band) == c.Box {
			return c, true
		}
	}
	return schemas.MatchCandidate{}, false
}

package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/vision/locator"
	"github.com/xkilldash9x/unfollowed/internal/vision/matcher"
	"github.com/xkilldash9x/unfollowed/internal/vision/textreader"
)

// visionStack holds the configured matcher, readers and locator.
type visionStack struct {
	Matcher   *matcher.Matcher
	Templates *matcher.Set
	// Rows reads usernames; Text reads free text such as block notices.
	Rows    *textreader.Reader
	Text    *textreader.Reader
	Locator *locator.Locator

	closers []func()
}

// Close releases the OCR engines.
func (vs *visionStack) Close() {
	for _, c := range vs.closers {
		c()
	}
}

func buildVision(cfg *config.Config, logger *zap.Logger, env environment) (*visionStack, error) {
	templates, err := matcher.LoadSet(cfg.Vision.TemplatesDir, cfg.Vision.Templates)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	vs := &visionStack{
		Matcher:   matcher.New(cfg.Vision.Scales, cfg.Vision.NMSRadius, logger),
		Templates: templates,
	}

	rowRec, closeRows, err := env.Recognizer(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("start OCR engine: %w", err)
	}
	vs.closers = append(vs.closers, closeRows)

	textRec, closeText, err := env.Recognizer(cfg, false)
	if err != nil {
		vs.Close()
		return nil, fmt.Errorf("start OCR engine: %w", err)
	}
	vs.closers = append(vs.closers, closeText)

	vs.Rows = textreader.New(rowRec, textreader.OptionsFromConfig(cfg.Vision), logger)
	vs.Text = textreader.New(textRec, textreader.OptionsFromConfig(cfg.Vision), logger)
	vs.Locator = locator.New(vs.Rows, vs.Matcher, templates, cfg.Screen.Region, locator.Options{
		MatchThreshold:   cfg.Vision.MatchThreshold,
		ConfirmThreshold: cfg.Vision.ConfirmThreshold,
		BandTolerance:    cfg.Vision.BandTolerance,
	}, logger)
	return vs, nil
}

// -- cmd/calibrate.go --
package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/observability"
	"github.com/xkilldash9x/unfollowed/internal/vision/capture"
	"github.com/xkilldash9x/unfollowed/internal/vision/matcher"
	"github.com/xkilldash9x/unfollowed/internal/vision/textreader"
)

// calibrateFloor is the lowest match score worth reporting.
const calibrateFloor = 0.5

func newCalibrateCmd(env environment) *cobra.Command {
	var (
		fromFile string
		savePath string
	)

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Show what the vision pipeline sees in the list region",
		Long: `Captures the screen once (or loads a saved screenshot) and prints every row the
text reader finds in the configured region, together with the best button match
in each row and the best popup and block matches on the whole screen. Use it to
tune screen.region, vision.row_height and the thresholds. Nothing is clicked.
Like run, it needs a binary built with -tags tesseract.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			var screen schemas.ScreenCapability
			bounds := cfg.Screen.Bounds()
			if fromFile != "" {
				frame, err := capture.LoadFrame(fromFile)
				if err != nil {
					return err
				}
				screen = capture.NewStatic(frame)
				bounds = schemas.RectFromImage(frame.Bounds())
			} else if screen, err = env.Screen(cfg, logger); err != nil {
				return fmt.Errorf("open screen: %w", err)
			}

			shot, err := screen.Capture(ctx, bounds)
			if err != nil {
				return fmt.Errorf("capture screen: %w", err)
			}
			if savePath != "" {
				if err := saveFrame(savePath, shot); err != nil {
					return err
				}
				logger.Info("Saved screenshot.", zap.String("path", savePath))
			}

			vs, err := buildVision(cfg, logger, env)
			if err != nil {
				return err
			}
			defer vs.Close()

			return runCalibrate(ctx, cmd.OutOrStdout(), cfg, vs, shot)
		},
	}

	calibrateCmd.Flags().StringVar(&fromFile, "from-file", "", "analyze a saved PNG screenshot instead of the live screen")
	calibrateCmd.Flags().StringVar(&savePath, "save", "", "write the analyzed screenshot to this PNG file")
	return calibrateCmd
}

// runCalibrate prints the rows, button and popup matches found in shot.
func runCalibrate(ctx context.Context, w io.Writer, cfg *config.Config, vs *visionStack, shot image.Image) error {
	region := cfg.Screen.Region.Intersect(schemas.RectFromImage(shot.Bounds()))
	if region.Empty() {
		return fmt.Errorf("screen.region %s lies outside the screenshot %s", cfg.Screen.Region, schemas.RectFromImage(shot.Bounds()))
	}

	list := matcher.Region(shot, region)
	res, err := vs.Rows.ReadRows(ctx, list)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	fmt.Fprintf(w, "Region %s: %d rows read, %d expected", region, len(res.Rows), res.Expected)
	if res.LowConfidence {
		fmt.Fprint(w, " (low confidence)")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tTEXT\tOCR\tBOX\tBUTTON\tSCORE\tCLICK")
	for i, row := range res.Rows {
		band := row.Box.InsetY(cfg.Vision.BandTolerance).Intersect(region)
		label, score, click := "-", "-", "-"
		if c, ok := bestOf(vs.Matcher, matcher.Region(shot, band), vs.Templates.Following, vs.Templates.Follow); ok {
			label = c.Label
			score = fmt.Sprintf("%.3f", c.Confidence)
			click = c.Box.Center().String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\t%s\t%s\n", i+1, row.Text, row.Confidence, row.Box, label, score, click)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	popups := []*matcher.Template{vs.Templates.Confirm, vs.Templates.Cancel}
	popups = append(popups, vs.Templates.Block...)
	for _, tpl := range popups {
		if tpl == nil {
			continue
		}
		if c, ok := vs.Matcher.Best(shot, tpl, calibrateFloor); ok {
			fmt.Fprintf(w, "%-10s best %.3f at %s\n", tpl.Label, c.Confidence, c.Box)
		} else {
			fmt.Fprintf(w, "%-10s no match\n", tpl.Label)
		}
	}

	if len(cfg.Vision.BlockPhrases) > 0 {
		text, err := vs.Text.ReadText(ctx, shot)
		if err != nil {
			return fmt.Errorf("read screen text: %w", err)
		}
		if phrase, ok := textreader.ContainsPhrase(text, cfg.Vision.BlockPhrases); ok {
			fmt.Fprintf(w, "block phrase on screen: %q\n", phrase)
		} else {
			fmt.Fprintln(w, "no block phrase on screen")
		}
	}
	return nil
}

// bestOf returns the highest scoring match of any of tpls in img.
func bestOf(m *matcher.Matcher, img image.Image, tpls ...*matcher.Template) (schemas.MatchCandidate, bool) {
	var (
		best  schemas.MatchCandidate
		found bool
	)
	for _, tpl := range tpls {
		c, ok := m.Best(img, tpl, calibrateFloor)
		if ok && (!found || c.Confidence > best.Confidence) {
			best, found = c, true
		}
	}
	return best, found
}

func saveFrame(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

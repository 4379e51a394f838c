package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/clock"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/humanoid"
	"github.com/xkilldash9x/unfollowed/internal/observability"
	"github.com/xkilldash9x/unfollowed/internal/vision/textreader"
	"github.com/xkilldash9x/unfollowed/internal/vision/visiontest"
)

// Geometry shared by the command tests. It matches the config written by
// writeConfig.
const rowHeight = 72

var (
	testScreen = schemas.Rect{W: 960, H: 540}
	testRegion = schemas.Rect{X: 100, Y: 100, W: 700, H: 4 * rowHeight}

	followingGlyph = visiontest.Glyph(101, 96, 32)
	followGlyph    = visiontest.Glyph(202, 96, 32)
	confirmGlyph   = visiontest.Glyph(303, 64, 24)
	blockGlyph     = visiontest.Glyph(404, 80, 40)
)

// listFrame draws one row per name with the given button glyph.
func listFrame(names []string, buttons map[string]image.Image) *image.RGBA {
	frame := visiontest.Blank(testScreen.Image())
	for i, name := range names {
		top := testRegion.Y + i*rowHeight
		visiontest.DrawText(frame, image.Rect(testRegion.X+80, top+12, testRegion.X+400, top+44), name)
		visiontest.Paste(frame, buttons[name], image.Pt(testRegion.X+560, top+20))
	}
	return frame
}

// scene is a screen and input device in one: releasing the mouse button
// advances to the next frame.
type scene struct {
	mu      sync.Mutex
	frames  []image.Image
	current int
	presses int
	wheels  int
}

func newScene(frames ...image.Image) *scene { return &scene{frames: frames} }

func (s *scene) Capture(ctx context.Context, region schemas.Rect) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return visiontest.Clone(s.frames[s.current]).SubImage(region.Image()), nil
}

func (s *scene) DispatchMouseEvent(ctx context.Context, e schemas.MouseEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Type {
	case schemas.MousePress:
		s.presses++
	case schemas.MouseRelease:
		if s.current < len(s.frames)-1 {
			s.current++
		}
	case schemas.MouseWheel:
		s.wheels++
	}
	return ctx.Err()
}

func (s *scene) SendKeys(ctx context.Context, _ string) error { return ctx.Err() }

func (s *scene) counts() (presses, wheels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presses, s.wheels
}

// fakeEnvironment serves a scene, the barcode recognizer and a fake clock.
type fakeEnvironment struct {
	scene *scene
	clock *clock.Fake
}

func newFakeEnvironment(s *scene) *fakeEnvironment {
	return &fakeEnvironment{scene: s, clock: clock.NewFake(time.Now())}
}

func (e *fakeEnvironment) Screen(*config.Config, *zap.Logger) (schemas.ScreenCapability, error) {
	return e.scene, nil
}

func (e *fakeEnvironment) Device(*config.Config, *zap.Logger) (humanoid.Device, error) {
	return e.scene, nil
}

func (e *fakeEnvironment) Recognizer(*config.Config, bool) (textreader.Recognizer, func(), error) {
	return &visiontest.Recognizer{}, func() {}, nil
}

func (e *fakeEnvironment) Clock() clock.Clock { return e.clock }

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// workspace is a temp directory holding templates, a config file and the
// journal.
type workspace struct {
	dir        string
	configPath string
	journal    string
}

// newWorkspace writes the templates and a config file tuned for the test
// geometry and a zero action delay.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	tplDir := filepath.Join(dir, "templates")
	require.NoError(t, os.Mkdir(tplDir, 0o755))
	writePNG(t, filepath.Join(tplDir, "following.png"), followingGlyph)
	writePNG(t, filepath.Join(tplDir, "follow.png"), followGlyph)
	writePNG(t, filepath.Join(tplDir, "confirm.png"), confirmGlyph)
	writePNG(t, filepath.Join(tplDir, "blocked.png"), blockGlyph)

	ws := &workspace{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		journal:    filepath.Join(dir, "journal.db"),
	}
	yaml := fmt.Sprintf(`logger:
  level: error
  log_file: %s
screen:
  baseline_width: %d
  baseline_height: %d
  region: {x: %d, y: %d, w: %d, h: %d}
  capture_min_interval: 0s
vision:
  templates_dir: %s
  scales: [1.0]
  row_height: %d
  templates:
    following: following.png
    follow: follow.png
    confirm: confirm.png
    after_unfollow: follow.png
    after_follow: following.png
    block: [blocked.png]
  block_phrases: [ACTIONBLOCKED]
timing:
  min_action_delay: 0s
  max_action_delay: 0s
  pause_every_actions: 0
  confirm_poll_interval: 100ms
  confirm_poll_attempts: 3
limits:
  max_scroll_retries: 1
  max_capture_retries: 1
  scroll_page_amount: 2
journal:
  driver: sqlite
  path: %s
input:
  backend: noop
`, filepath.Join(dir, "unfollowed.log"),
		testScreen.W, testScreen.H,
		testRegion.X, testRegion.Y, testRegion.W, testRegion.H,
		tplDir, rowHeight, ws.journal)
	require.NoError(t, os.WriteFile(ws.configPath, []byte(yaml), 0o644))
	return ws
}

func (ws *workspace) writeTargets(t *testing.T, csv string) string {
	t.Helper()
	path := filepath.Join(ws.dir, "targets.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	return path
}

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, env environment, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	root := newRootCommand(env, openJournal)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

package humanoid

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// XdotoolDevice delivers events through the xdotool command on X11.
type XdotoolDevice struct {
	path   string
	run    CommandRunner
	logger *zap.Logger
}

var (
	_ Device     = (*XdotoolDevice)(nil)
	_ Positioner = (*XdotoolDevice)(nil)
)

// XdotoolOption configures an XdotoolDevice.
type XdotoolOption func(*XdotoolDevice)

// WithCommandRunner replaces process execution, for tests.
func WithCommandRunner(run CommandRunner) XdotoolOption {
	return func(d *XdotoolDevice) { d.run = run }
}

// NewXdotoolDevice creates a device invoking the xdotool binary at path.
func NewXdotoolDevice(path string, logger *zap.Logger, opts ...XdotoolOption) *XdotoolDevice {
	if path == "" {
		path = "xdotool"
	}
	d := &XdotoolDevice{path: path, run: execRunner, logger: logger.Named("xdotool")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LookPath reports whether the xdotool binary can be found.
func (d *XdotoolDevice) LookPath() error {
	if _, err := exec.LookPath(d.path); err != nil {
		return fmt.Errorf("xdotool not available: %w", err)
	}
	return nil
}

func (d *XdotoolDevice) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	var args []string
	switch data.Type {
	case schemas.MouseMove:
		args = []string{"mousemove", "--", coord(data.X), coord(data.Y)}
	case schemas.MousePress:
		args = []string{"mousedown", buttonNumber(data.Button)}
	case schemas.MouseRelease:
		args = []string{"mouseup", buttonNumber(data.Button)}
	case schemas.MouseWheel:
		// X11 maps wheel up and down to buttons 4 and 5.
		button := "5"
		if data.DeltaY < 0 {
			button = "4"
		}
		args = []string{"click", button}
	default:
		return fmt.Errorf("unsupported mouse event type %q", data.Type)
	}
	_, err := d.run(ctx, d.path, args...)
	return err
}

func (d *XdotoolDevice) SendKeys(ctx context.Context, keys string) error {
	_, err := d.run(ctx, d.path, "type", "--delay", "0", "--", keys)
	return err
}

// CursorPosition parses `xdotool getmouselocation --shell`.
func (d *XdotoolDevice) CursorPosition(ctx context.Context) (schemas.Point, error) {
	out, err := d.run(ctx, d.path, "getmouselocation", "--shell")
	if err != nil {
		return schemas.Point{}, err
	}
	var p schemas.Point
	var seenX, seenY bool
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			p.X, seenX = n, true
		case "Y":
			p.Y, seenY = n, true
		}
	}
	if !seenX || !seenY {
		return schemas.Point{}, fmt.Errorf("unexpected getmouselocation output %q", out)
	}
	return p, nil
}

func coord(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

func buttonNumber(b schemas.MouseButton) string {
	switch b {
	case schemas.ButtonMiddle:
		return "2"
	case schemas.ButtonRight:
		return "3"
	default:
		return "1"
	}
}

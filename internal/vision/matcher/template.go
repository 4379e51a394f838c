package matcher

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
)

// Template is a reference glyph to search for.
type Template struct {
	Label string
	// WideScope templates (popups) are searched on the full screen instead
	// of the list region.
	WideScope bool

	gray *image.Gray
}

// NewTemplate converts img to grayscale and wraps it as a template.
func NewTemplate(label string, img image.Image, wideScope bool) *Template {
	return &Template{Label: label, WideScope: wideScope, gray: toGray(img)}
}

// LoadTemplate reads a PNG template from disk.
func LoadTemplate(path, label string, wideScope bool) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", label, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", path, err)
	}
	tpl := NewTemplate(label, img, wideScope)
	if w, h := tpl.Size(); w < 2 || h < 2 {
		return nil, fmt.Errorf("template %s is too small (%dx%d)", path, w, h)
	}
	return tpl, nil
}

// Size returns the template's unscaled width and height.
func (t *Template) Size() (int, int) {
	return t.gray.Rect.Dx(), t.gray.Rect.Dy()
}

// Set is the collection of templates the pipeline needs.
type Set struct {
	Following     *Template
	Follow        *Template
	Confirm       *Template
	AfterUnfollow *Template
	AfterFollow   *Template
	Cancel        *Template
	Block         []*Template
}

// LoadSet loads every configured template from dir. The after_* and cancel
// templates are optional.
func LoadSet(dir string, files config.TemplatesConfig) (*Set, error) {
	load := func(name, label string, wide bool) (*Template, error) {
		if name == "" {
			return nil, nil
		}
		return LoadTemplate(filepath.Join(dir, name), label, wide)
	}

	var (
		set Set
		err error
	)
	if set.Following, err = load(files.Following, "following", false); err != nil {
		return nil, err
	}
	if set.Follow, err = load(files.Follow, "follow", false); err != nil {
		return nil, err
	}
	if set.Confirm, err = load(files.Confirm, "confirm", true); err != nil {
		return nil, err
	}
	if set.AfterUnfollow, err = load(files.AfterUnfollow, "after_unfollow", false); err != nil {
		return nil, err
	}
	if set.AfterFollow, err = load(files.AfterFollow, "after_follow", false); err != nil {
		return nil, err
	}
	if set.Cancel, err = load(files.Cancel, "cancel", true); err != nil {
		return nil, err
	}
	for i, name := range files.Block {
		tpl, err := load(name, fmt.Sprintf("block_%d", i), true)
		if err != nil {
			return nil, err
		}
		set.Block = append(set.Block, tpl)
	}
	if set.Following == nil || set.Follow == nil || set.Confirm == nil {
		return nil, fmt.Errorf("templates following, follow and confirm are required")
	}
	return &set, nil
}

// Button returns the template of the row button that starts action kind.
func (s *Set) Button(kind schemas.ActionKind) *Template {
	if kind == schemas.ActionFollow {
		return s.Follow
	}
	return s.Following
}

// After returns the template the row button shows once kind has completed,
// or nil when none is configured.
func (s *Set) After(kind schemas.ActionKind) *Template {
	if kind == schemas.ActionFollow {
		return s.AfterFollow
	}
	return s.AfterUnfollow
}

// ConfirmFor returns the popup template that guards kind, or nil when the
// row button commits the action directly.
func (s *Set) ConfirmFor(kind schemas.ActionKind) *Template {
	if kind == schemas.ActionFollow {
		return nil
	}
	return s.Confirm
}

// toGray returns a zero-origin grayscale copy of img.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

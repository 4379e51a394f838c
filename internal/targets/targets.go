// Package targets loads the batch input: a CSV file with a username column
// and an optional action column.
package targets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xkilldash9x/unfollowed/api/schemas"
)

// ErrNoUsernameColumn is returned for files without a username header.
var ErrNoUsernameColumn = errors.New("CSV must contain a 'username' column")

// Load reads targets from the CSV file at path. Rows without an action use
// def.
func Load(path string, def schemas.ActionKind) ([]schemas.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	ts, err := Read(f, def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// Read parses targets from CSV data. Header names are matched without regard
// to case or surrounding space; other columns are ignored. Blank usernames
// are skipped and a leading "@" is dropped.
func Read(r io.Reader, def schemas.ActionKind) ([]schemas.Target, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoUsernameColumn
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	userCol, actionCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "username":
			userCol = i
		case "action":
			actionCol = i
		}
	}
	if userCol < 0 {
		return nil, ErrNoUsernameColumn
	}

	var out []schemas.Target
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		name := strings.TrimPrefix(strings.TrimSpace(field(rec, userCol)), "@")
		if name == "" {
			continue
		}
		kind := def
		if raw := field(rec, actionCol); strings.TrimSpace(raw) != "" {
			if kind, err = schemas.ParseActionKind(raw); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		out = append(out, schemas.Target{Username: name, Action: kind})
	}
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

package schemas

import (
	"fmt"
	"strings"
)

// ActionKind is the social action requested for a target.
type ActionKind string

const (
	ActionUnfollow ActionKind = "UNFOLLOW"
	ActionFollow   ActionKind = "FOLLOW"
)

// ParseActionKind accepts the spellings used in input files and on the command
// line ("unfollow", "FOLLOW", ...). An empty string means unfollow.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ActionUnfollow):
		return ActionUnfollow, nil
	case string(ActionFollow):
		return ActionFollow, nil
	default:
		return "", fmt.Errorf("unknown action %q (want unfollow or follow)", s)
	}
}

// Target is one input record. It is immutable once loaded.
type Target struct {
	Username string     `json:"username"`
	Action   ActionKind `json:"action"`
}

// Key identifies a target for de-duplication purposes.
func (t Target) Key() string {
	return string(t.Action) + ":" + strings.ToLower(strings.TrimSpace(t.Username))
}

func (t Target) String() string {
	return fmt.Sprintf("%s(%s)", strings.ToLower(string(t.Action)), t.Username)
}

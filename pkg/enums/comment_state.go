package enums

import "fmt"

// CommentState is the lifecycle state of a comment. Deleted comments keep
// their document so admin audit queries can still surface them.
type CommentState string

const (
	CommentStateActive  CommentState = "active"
	CommentStateDeleted CommentState = "deleted"
)

var validCommentStates = []CommentState{
	CommentStateActive,
	CommentStateDeleted,
}

// String returns the literal string for the state.
func (c CommentState) String() string {
	return string(c)
}

// IsValid reports whether the state is known.
func (c CommentState) IsValid() bool {
	for _, candidate := range validCommentStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommentState converts raw input into a CommentState.
func ParseCommentState(value string) (CommentState, error) {
	for _, candidate := range validCommentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid comment state %q", value)
}

package core

import (
	"fmt"
	"strings"
)

// PathSeparator joins the segments of a stable path.
const PathSeparator = "."

// ValidPath reports whether path is a dot-separated list of non-empty
// segments made of letters, digits, '_' and '-'.
func ValidPath(path string) bool {
	_, err := SplitPath(path)
	return err == nil
}

// SplitPath splits a stable path into its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	segments := strings.Split(path, PathSeparator)
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("invalid path %q: empty segment", path)
		}
		for _, r := range seg {
			if !isSegmentRune(r) {
				return nil, fmt.Errorf("invalid path %q: unexpected %q", path, r)
			}
		}
	}
	return segments, nil
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segments ...string) string {
	return strings.Join(segments, PathSeparator)
}

func isSegmentRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

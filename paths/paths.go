// Package paths implements the absolute, slash-separated path algebra
// used to address nodes. "/" is the root; every other valid path is
// "/" followed by one or more non-empty, slash-free segments, with no
// trailing slash.
package paths

import "strings"

// Root is the path of the tree root.
const Root = "/"

// IsValid reports whether path is well formed.
func IsValid(path string) bool {
	if path == Root {
		return true
	}
	if !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return false
	}
	for _, seg := range strings.Split(path[1:], "/") {
		if seg == "" {
			return false
		}
	}
	return true
}

// Split returns the segments of a valid path, nil for the root.
func Split(path string) []string {
	if path == Root {
		return nil
	}
	return strings.Split(path[1:], "/")
}

// Name returns the last segment of path, "" for the root.
func Name(path string) string {
	if path == Root {
		return ""
	}
	return path[strings.LastIndex(path, "/")+1:]
}

// Parent returns the path of path's parent, "" for the root (which has
// none).
func Parent(path string) string {
	if path == Root {
		return ""
	}
	i := strings.LastIndex(path, "/")
	if i == 0 {
		return Root
	}
	return path[:i]
}

// Concat joins a valid parent path and a child name.
func Concat(parent, name string) string {
	if parent == Root {
		return Root + name
	}
	return parent + "/" + name
}

// IsAncestor reports whether ancestor is a strict, segment-wise
// ancestor of path. A path is not its own ancestor.
func IsAncestor(ancestor, path string) bool {
	if ancestor == path {
		return false
	}
	if ancestor == Root {
		return true
	}
	return strings.HasPrefix(path, ancestor+"/")
}

package modules

import (
	"strings"

	"github.com/wippyai/jsbridge/errors"
)

// IsRelative reports whether spec starts with ./ or ../ (or is . or ..).
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// Dirname returns the directory part of a module path, or "" at the root.
func Dirname(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Combine joins spec onto dir and normalizes the result.
func Combine(dir, spec string) (string, error) {
	if dir == "" {
		return Extract(spec)
	}
	return Extract(dir + "/" + spec)
}

// Extract normalizes a path lexically: empty and "." segments are dropped
// and ".." pops the previous segment. Popping above the root fails. A
// leading slash is dropped; module paths are root-relative.
func Extract(p string) (string, error) {
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", errors.InvalidPath(p, "cannot pop above root")
			}
			out = out[:len(out)-1]
		default:
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return "", errors.InvalidPath(p, "empty module path")
	}
	return strings.Join(out, "/"), nil
}

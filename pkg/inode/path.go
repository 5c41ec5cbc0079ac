package inode

import (
	"strings"

	"github.com/agentvfs/core/pkg/errors"
)

// NormalizePath canonicalizes a VFS path per spec.md §4.C: no "." or ".."
// segments, no duplicate separators, no trailing separator except for the
// root itself.
func NormalizePath(p string) (string, error) {
	if p == "" {
		return "", errors.NewInvalidArgument("empty path")
	}
	if !strings.HasPrefix(p, "/") {
		return "", errors.NewInvalidArgument("path must be absolute: " + p)
	}

	segments := strings.Split(p, "/")
	clean := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", errors.NewInvalidArgument("path must not contain \"..\": " + p)
		default:
			clean = append(clean, seg)
		}
	}
	if len(clean) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(clean, "/"), nil
}

// ParentPath returns the canonical parent of a normalized path, or "" if p
// is the root.
func ParentPath(p string) string {
	if p == "/" {
		return ""
	}
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// BaseName returns the final segment of a normalized path.
func BaseName(p string) string {
	if p == "/" {
		return "/"
	}
	idx := strings.LastIndexByte(p, '/')
	return p[idx+1:]
}

// childPrefix returns the prefix scan bound for a directory's children: the
// parent path plus exactly one separator, so siblings sharing a name prefix
// (e.g. "/a/bc" vs "/a/b") are not conflated (spec.md §4.C).
func childPrefix(parent string) string {
	if parent == "/" {
		return "/"
	}
	return parent + "/"
}

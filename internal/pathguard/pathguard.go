// Package pathguard confines user-supplied relative paths to a configured
// base directory. All checks are lexical: nothing here touches the
// filesystem, callers decide whether a resolved path must also exist.
package pathguard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeroco/opsbox/internal/opserr"
)

// Resolve joins candidate onto base, normalizes the result, and verifies the
// base directory still contains it. base must be an absolute, cleaned path.
// An absolute candidate is taken as-is rather than re-rooted under base, so
// it only passes when it already lies inside the base directory.
//
// Containment is checked per path segment, not by raw string prefix, so
// "/data-evil" never passes as being inside "/data".
func Resolve(base, candidate string) (string, error) {
	base = filepath.Clean(base)
	resolved := filepath.Join(base, candidate)
	if filepath.IsAbs(candidate) {
		resolved = filepath.Clean(candidate)
	}
	if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: destination %q escapes base directory %s: path traversal attempt detected", opserr.ErrInvalidInput, candidate, base)
	}
	return resolved, nil
}

// FileName applies the strict filename-only rule: the candidate must be a
// bare filename with no path components at all. It returns the validated
// name unchanged.
//
// This is stronger than Resolve — any separator is rejected, not just
// segments that would escape the base.
func FileName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: filename must not be empty", opserr.ErrInvalidInput)
	}
	if filepath.Base(name) != name {
		return "", fmt.Errorf("%w: invalid characters or path components in filename %q", opserr.ErrInvalidInput, name)
	}
	return name, nil
}

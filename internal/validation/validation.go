// Package validation provides input validation for API requests.
package validation

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrNameEmpty indicates an empty instance name.
	ErrNameEmpty = errors.New("instance name must not be empty")
	// ErrNameTooLong indicates the name exceeds the maximum length.
	ErrNameTooLong = errors.New("instance name exceeds 64 characters")
	// ErrNameInvalid indicates the name contains invalid characters.
	ErrNameInvalid = errors.New("instance name may only contain letters, digits, '.', '_' and '-'")
	// ErrPathEmpty indicates an empty path.
	ErrPathEmpty = errors.New("path must not be empty")
	// ErrPathRelative indicates a non-absolute path.
	ErrPathRelative = errors.New("path must be absolute")
	// ErrPathTraversal indicates a path containing parent references.
	ErrPathTraversal = errors.New("path must not contain '..'")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateInstanceName checks an instance name for use as a registry and
// result key.
func ValidateInstanceName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	if len(name) > 64 {
		return ErrNameTooLong
	}
	if !namePattern.MatchString(name) {
		return ErrNameInvalid
	}
	return nil
}

// ValidatePath checks a filesystem path supplied by an API caller.
func ValidatePath(path string) error {
	if path == "" {
		return ErrPathEmpty
	}
	if !filepath.IsAbs(path) {
		return ErrPathRelative
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return ErrPathTraversal
		}
	}
	return nil
}

package docstore

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength bounds collection names, counted in Unicode code points.
const MaxNameLength = 255

var (
	errNameEmpty     = errors.New("name is empty")
	errNameTraversal = errors.New("name contains a parent directory marker")
	errNameSeparator = errors.New("name contains a path separator")
	errNameControl   = errors.New("name contains a NUL, carriage return or line feed")
)

// ValidateName rejects collection names that could escape the storage root or
// corrupt backend keys. It never rewrites the name.
func ValidateName(name string) error {
	if reason := checkName(name); reason != nil {
		return newError("validate", name, ErrInvalidName, reason)
	}
	return nil
}

func checkName(name string) error {
	switch {
	case name == "":
		return errNameEmpty
	case strings.Contains(name, ".."):
		return errNameTraversal
	case strings.ContainsAny(name, `/\`):
		return errNameSeparator
	case strings.ContainsAny(name, "\x00\r\n"):
		return errNameControl
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return fmt.Errorf("name has %d characters, limit is %d", n, MaxNameLength)
	}
	return nil
}

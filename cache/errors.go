package cache

import (
	"fmt"
	"strings"
)

// LayoutError is returned when an extracted archive does not contain exactly
// one top-level entry.
type LayoutError struct {
	Entries []string
}

func (e *LayoutError) Error() string {
	if len(e.Entries) == 0 {
		return "unexpected archive layout: archive is empty"
	}
	return fmt.Sprintf("unexpected archive layout: expected one top-level entry, found %d (%s)",
		len(e.Entries), strings.Join(e.Entries, ", "))
}

// ChecksumError is returned when a freshly installed executable does not
// match its expected digest.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected md5 %s, got %s", e.Path, e.Expected, e.Actual)
}

// Package name resolves dot-delimited app names.
//
// Absolute names address a node from the tree root ("MAIN.App1.App1_1").
// Relative names carry leading separators and are resolved against a
// caller: one separator appends under the caller, each extra separator
// walks one level up first.
package name

import (
	"errors"
	"fmt"
	"strings"
)

const Sep = "."

var (
	ErrPastRoot = errors.New("name: relative name walks past root")
	ErrEmpty    = errors.New("name: empty name")
)

// Clean strips leading and trailing separators. Internal separators are kept.
func Clean(n string) string {
	return strings.Trim(n, Sep)
}

// CountHeadSep returns the number of consecutive separators at the start of n.
func CountHeadSep(n string) int {
	count := 0
	for strings.HasPrefix(n[count:], Sep) {
		count++
	}
	return count
}

// Join cleans base and every part and joins them with a single separator.
// Parts that clean to "" are skipped.
func Join(base string, parts ...string) string {
	out := make([]string, 0, len(parts)+1)
	if b := Clean(base); b != "" {
		out = append(out, b)
	}
	for _, p := range parts {
		if c := Clean(p); c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, Sep)
}

// JoinRelative resolves other against base. With k leading separators in
// other, k-1 trailing segments are popped from base before appending.
func JoinRelative(base, other string) (string, error) {
	k := CountHeadSep(other)
	if k <= 1 {
		return Join(base, other), nil
	}
	segs := Split(base)
	pop := k - 1
	if pop > len(segs) {
		return "", fmt.Errorf("%w: base=%q other=%q", ErrPastRoot, base, other)
	}
	return Join(strings.Join(segs[:len(segs)-pop], Sep), other), nil
}

// Split returns the segments of the cleaned name. An empty name has none.
func Split(n string) []string {
	c := Clean(n)
	if c == "" {
		return nil
	}
	return strings.Split(c, Sep)
}

// Resolve turns n into an absolute name. Names with leading separators are
// relative to caller, anything else is already absolute.
func Resolve(caller, n string) (string, error) {
	var out string
	if CountHeadSep(n) > 0 {
		var err error
		out, err = JoinRelative(caller, n)
		if err != nil {
			return "", err
		}
	} else {
		out = Clean(n)
	}
	if out == "" {
		return "", ErrEmpty
	}
	return out, nil
}

// Short returns the last segment of n.
func Short(n string) string {
	c := Clean(n)
	if i := strings.LastIndex(c, Sep); i >= 0 {
		return c[i+1:]
	}
	return c
}

// Parent returns n without its last segment, or "" for a single segment.
func Parent(n string) string {
	c := Clean(n)
	if i := strings.LastIndex(c, Sep); i >= 0 {
		return c[:i]
	}
	return ""
}

// Within reports whether n equals prefix or lies below it.
func Within(n, prefix string) bool {
	n, prefix = Clean(n), Clean(prefix)
	if prefix == "" {
		return true
	}
	return n == prefix || strings.HasPrefix(n, prefix+Sep)
}

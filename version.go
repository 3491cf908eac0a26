package neoconsole

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	versionPrefix = regexp.MustCompile(`^(\d+\.\d+)`)
	versionShape  = regexp.MustCompile(`^\d+\.\d+$`)
)

// VersionPin is an optional major.minor query-language version. The zero value is the
// cleared pin, which means the latest grammar.
type VersionPin struct {
	v string
}

// ParseVersionPin normalizes s to its leading major.minor pair.
//
//	""          -> cleared pin
//	"2.1.5"     -> "2.1"
//	"2.1.5-RC1" -> "2.1"
//	"abc"       -> KindInvalidVersion
func ParseVersionPin(s string) (VersionPin, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VersionPin{}, nil
	}
	v := s
	if m := versionPrefix.FindStringSubmatch(s); m != nil {
		v = m[1]
	}
	if !versionShape.MatchString(v) {
		return VersionPin{}, newError(KindInvalidVersion, s, fmt.Errorf("%q is not of the form major.minor", s))
	}
	return VersionPin{v: v}, nil
}

// MustVersionPin is like ParseVersionPin but panics on error.
func MustVersionPin(s string) VersionPin {
	p, err := ParseVersionPin(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns "major.minor", or "" for the cleared pin.
func (p VersionPin) String() string { return p.v }

// IsSet reports whether the pin constrains the grammar.
func (p VersionPin) IsSet() bool { return p.v != "" }

// Compare orders two pins numerically. The cleared pin sorts after every set pin.
func (p VersionPin) Compare(o VersionPin) int {
	switch {
	case !p.IsSet() && !o.IsSet():
		return 0
	case !p.IsSet():
		return 1
	case !o.IsSet():
		return -1
	}
	return semver.Compare("v"+p.v, "v"+o.v)
}

// AtLeast reports whether the grammar selected by p includes version min.
func (p VersionPin) AtLeast(min VersionPin) bool { return p.Compare(min) >= 0 }

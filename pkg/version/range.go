package version

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// Version is the engine's feature/bundle version type.
type Version = semver.Version

// Parse parses a version string. Unlike semver.Parse it is lenient about
// the number of dotted segments: "1.0" and "1" are padded with zero
// segments, matching the loose version strings a feature document may
// declare.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "0.0.0"
	}
	parts := strings.SplitN(s, ".", 4)
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	v, err := semver.Parse(strings.Join(parts[:3], "."))
	if err != nil {
		return Version{}, fmt.Errorf("parsing version %q: %w", s, err)
	}
	if len(parts) == 4 && parts[3] != "" {
		if pre, err := semver.NewPRVersion(parts[3]); err == nil {
			v.Pre = []semver.PRVersion{pre}
		}
	}
	return v, nil
}

// VersionRange is a lower/upper bound pair with independent inclusivity on
// each side, matching the Karaf-derived range notation used throughout the
// feature catalog ("[1.0.0,2.0.0)" etc). A range with Unbounded set has no
// ceiling ("+∞").
type VersionRange struct {
	Floor            Version
	Ceiling          Version
	FloorInclusive   bool
	CeilingInclusive bool
	Unbounded        bool
}

// AnyVersion is the range matching every version, used when a feature
// request's version spec is empty or the "0.0.0" wildcard.
func AnyVersion() VersionRange {
	return VersionRange{FloorInclusive: true, Unbounded: true}
}

// TriggerRange builds the conditional-trigger range described in spec §4.3:
// lower-exclusive, upper-inclusive (vacuously, since unbounded) around v.
// This is intentionally NOT ">= v": a feature at exactly v does not satisfy
// its own trigger, matching the Karaf behavior this distills.
func TriggerRange(v Version) VersionRange {
	return VersionRange{Floor: v, FloorInclusive: false, Unbounded: true, CeilingInclusive: true}
}

// Contains reports whether v falls within the range.
func (r VersionRange) Contains(v Version) bool {
	cmp := v.Compare(r.Floor)
	if r.FloorInclusive {
		if cmp < 0 {
			return false
		}
	} else if cmp <= 0 {
		return false
	}
	if r.Unbounded {
		return true
	}
	cmpC := v.Compare(r.Ceiling)
	if r.CeilingInclusive {
		return cmpC <= 0
	}
	return cmpC < 0
}

// String renders the range in bracket notation, e.g. "[1.0.0,2.0.0)".
func (r VersionRange) String() string {
	open := "("
	if r.FloorInclusive {
		open = "["
	}
	ceil := "+∞"
	close := "]"
	if !r.Unbounded {
		ceil = r.Ceiling.String()
		if !r.CeilingInclusive {
			close = ")"
		}
	}
	return fmt.Sprintf("%s%s,%s%s", open, r.Floor.String(), ceil, close)
}

// ParseRange parses a bracket-notation range or, for a bare version
// string, the exact singleton range [v,v]. An empty spec or the "0.0.0"
// wildcard parses as AnyVersion().
func ParseRange(spec string) (VersionRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "0.0.0" {
		return AnyVersion(), nil
	}
	if !strings.HasPrefix(spec, "[") && !strings.HasPrefix(spec, "(") {
		v, err := Parse(spec)
		if err != nil {
			return VersionRange{}, err
		}
		return VersionRange{Floor: v, Ceiling: v, FloorInclusive: true, CeilingInclusive: true}, nil
	}
	if len(spec) < 2 {
		return VersionRange{}, fmt.Errorf("invalid version range %q", spec)
	}
	floorIncl := spec[0] == '['
	ceilIncl := spec[len(spec)-1] == ']'
	inner := spec[1 : len(spec)-1]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return VersionRange{}, fmt.Errorf("invalid version range %q: expected two comma-separated bounds", spec)
	}
	floor, err := Parse(strings.TrimSpace(parts[0]))
	if err != nil {
		return VersionRange{}, fmt.Errorf("invalid version range %q: %w", spec, err)
	}
	ceiling, err := Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return VersionRange{}, fmt.Errorf("invalid version range %q: %w", spec, err)
	}
	return VersionRange{Floor: floor, Ceiling: ceiling, FloorInclusive: floorIncl, CeilingInclusive: ceilIncl}, nil
}

// ApplyMacro transforms v into a range using a Karaf-style macro, e.g.
// "[====,====]" (exact) or "[==,=+)" (same major.minor, any patch). Only
// the first three characters of each bracketed token are read, one per
// major/minor/patch segment: '=' keeps the segment from v, '+' increments
// it, '0' zeroes it; any segment position past the end of the token is
// zeroed. A fourth character (the qualifier position, as in "====") is
// ignored, and the resulting bounds never carry a qualifier. After a '+'
// or '0' at position i, a later '=' yields zero rather than v's segment;
// a later '+' still increments v's segment.
func ApplyMacro(macro string, v Version) (VersionRange, error) {
	macro = strings.TrimSpace(macro)
	if len(macro) < 2 {
		return VersionRange{}, fmt.Errorf("invalid version macro %q", macro)
	}
	floorIncl := macro[0] == '['
	ceilIncl := macro[len(macro)-1] == ']'
	inner := macro[1 : len(macro)-1]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return VersionRange{}, fmt.Errorf("invalid version macro %q: expected two comma-separated tokens", macro)
	}
	floor := applyMacroToken(parts[0], v)
	ceiling := applyMacroToken(parts[1], v)
	return VersionRange{Floor: floor, Ceiling: ceiling, FloorInclusive: floorIncl, CeilingInclusive: ceilIncl}, nil
}

func applyMacroToken(token string, v Version) Version {
	major, minor, patch := v.Major, v.Minor, v.Patch
	segs := [3]*uint64{&major, &minor, &patch}
	bumped := false
	for i := 0; i < 3; i++ {
		if i >= len(token) {
			*segs[i] = 0
			continue
		}
		switch token[i] {
		case '=':
			if bumped {
				*segs[i] = 0
			}
		case '+':
			*segs[i]++
			bumped = true
		case '0':
			*segs[i] = 0
			bumped = true
		}
	}
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Package region holds the cuboid areas BlockParty is limited to.
package region

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
)

// Region is an axis-aligned box of blocks in one world. Bounds are inclusive.
type Region struct {
	Name  string
	World string
	Min   [3]int
	Max   [3]int
}

// New returns a region whose corners are ordered so Min <= Max on every axis.
func New(name, world string, a, b [3]int) Region {
	r := Region{Name: name, World: world}
	for i := range 3 {
		r.Min[i], r.Max[i] = min(a[i], b[i]), max(a[i], b[i])
	}
	return r
}

func (r Region) Contains(loc ports.Location) bool {
	if !strings.EqualFold(r.World, loc.World) {
		return false
	}
	p := [3]int{loc.X, loc.Y, loc.Z}
	for i := range 3 {
		if p[i] < r.Min[i] || p[i] > r.Max[i] {
			return false
		}
	}
	return true
}

// Set is an immutable collection of regions.
type Set []Region

// At returns the names of the regions that contain loc, lower-cased.
func (s Set) At(loc ports.Location) []string {
	var names []string
	for _, r := range s {
		if r.Contains(loc) {
			names = append(names, strings.ToLower(r.Name))
		}
	}
	return names
}

func (s Set) Contains(loc ports.Location) bool {
	return slices.ContainsFunc(s, func(r Region) bool { return r.Contains(loc) })
}

// Settings control how regions gate BlockParty.
type Settings struct {
	Enabled bool
	Allowed []string
	Denied  []string
}

// Validator implements ports.AccessValidator over a region set.
type Validator struct {
	settings Settings
	regions  Set
}

var _ ports.AccessValidator = Validator{}

func NewValidator(settings Settings, regions Set) Validator {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	settings.Allowed = lower(settings.Allowed)
	settings.Denied = lower(settings.Denied)
	return Validator{settings: settings, regions: regions}
}

// Enabled reports whether region checks apply at all.
func (v Validator) Enabled() bool { return v.settings.Enabled }

// InRegion reports whether loc lies inside any configured region.
func (v Validator) InRegion(loc ports.Location) bool {
	return v.regions.Contains(loc)
}

// Allowed applies the allow and deny lists. Deny wins. With an empty allow
// list every region allows access.
func (v Validator) Allowed(_ uuid.UUID, loc ports.Location) bool {
	if !v.settings.Enabled {
		return true
	}
	names := v.regions.At(loc)
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if slices.Contains(v.settings.Denied, n) {
			return false
		}
	}
	if len(v.settings.Allowed) == 0 {
		return true
	}
	for _, n := range names {
		if slices.Contains(v.settings.Allowed, n) {
			return true
		}
	}
	return false
}

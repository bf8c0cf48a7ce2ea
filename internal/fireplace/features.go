package fireplace

import (
	"fmt"
	"slices"
	"strings"
)

// Feature names an optional capability of a fireplace unit.
type Feature string

const (
	FeatureAux        Feature = "aux"
	FeatureBlower     Feature = "blower"
	FeatureLEDLights  Feature = "led_lights"
	FeatureNightLight Feature = "night_light"
	FeatureSplitFlow  Feature = "split_flow"
	FeatureTimer      Feature = "timer"
)

// AllFeatures lists every known feature in name order.
var AllFeatures = []Feature{
	FeatureAux,
	FeatureBlower,
	FeatureLEDLights,
	FeatureNightLight,
	FeatureSplitFlow,
	FeatureTimer,
}

// Features is the set of capabilities installed on a unit. The zero value
// has none.
type Features struct {
	Aux        bool
	Blower     bool
	LEDLights  bool
	NightLight bool
	SplitFlow  bool
	Timer      bool
}

func (fs *Features) flag(f Feature) *bool {
	switch f {
	case FeatureAux:
		return &fs.Aux
	case FeatureBlower:
		return &fs.Blower
	case FeatureLEDLights:
		return &fs.LEDLights
	case FeatureNightLight:
		return &fs.NightLight
	case FeatureSplitFlow:
		return &fs.SplitFlow
	case FeatureTimer:
		return &fs.Timer
	}
	return nil
}

// Has reports whether f is enabled.
func (fs Features) Has(f Feature) bool {
	p := fs.flag(f)
	return p != nil && *p
}

// Names returns the enabled feature names.
func (fs Features) Names() []string {
	var names []string
	for _, f := range AllFeatures {
		if fs.Has(f) {
			names = append(names, string(f))
		}
	}
	return names
}

// ParseFeatures builds a feature set from names. Unknown names are all
// reported together and nothing is enabled.
func ParseFeatures(names []string) (Features, error) {
	var fs Features
	var invalid []string
	for _, name := range names {
		p := fs.flag(Feature(strings.ToLower(strings.TrimSpace(name))))
		if p == nil {
			invalid = append(invalid, name)
			continue
		}
		*p = true
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		invalid = slices.Compact(invalid)
		plural := ""
		if len(invalid) > 1 {
			plural = "s"
		}
		return Features{}, fmt.Errorf("%w: invalid feature value%s found in input set: %s",
			ErrUnknownFeature, plural, strings.Join(invalid, ", "))
	}
	return fs, nil
}

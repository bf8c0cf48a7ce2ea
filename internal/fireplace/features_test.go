package fireplace

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestParseFeatures(t *testing.T) {
	fs, err := ParseFeatures([]string{"aux", "LED_LIGHTS", " night_light "})
	if err != nil {
		t.Fatalf("ParseFeatures() error = %v", err)
	}
	want := Features{Aux: true, LEDLights: true, NightLight: true}
	if fs != want {
		t.Errorf("ParseFeatures() = %+v, want %+v", fs, want)
	}
	if got := fs.Names(); !slices.Equal(got, []string{"aux", "led_lights", "night_light"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestParseFeaturesEmpty(t *testing.T) {
	fs, err := ParseFeatures(nil)
	if err != nil || fs != (Features{}) {
		t.Errorf("ParseFeatures(nil) = %+v, %v", fs, err)
	}
}

func TestParseFeaturesInvalid(t *testing.T) {
	_, err := ParseFeatures([]string{"blower", "turbo", "fan", "turbo"})
	if !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("ParseFeatures() error = %v, want ErrUnknownFeature", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "invalid feature values found in input set: fan, turbo") {
		t.Errorf("error message = %q", msg)
	}

	_, err = ParseFeatures([]string{"turbo"})
	if err == nil || !strings.Contains(err.Error(), "invalid feature value found") {
		t.Errorf("single invalid feature error = %v", err)
	}
}

func TestFeaturesHas(t *testing.T) {
	fs := Features{Timer: true}
	for _, f := range AllFeatures {
		if got := fs.Has(f); got != (f == FeatureTimer) {
			t.Errorf("Has(%s) = %v", f, got)
		}
	}
	if fs.Has(Feature("turbo")) {
		t.Error("Has(unknown) should be false")
	}
}

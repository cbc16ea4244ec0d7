package backend

import "testing"

// TestDecodeSettingsKeepsDefaults verifies fields absent from an older record
// keep their defaults, including a dark intensity of 1
func TestDecodeSettingsKeepsDefaults(t *testing.T) {
	s, err := DecodeSettings([]byte(`{"defaultView":"tasks","theme":"dark"}`))
	if err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if s.DarkIntensity != 1 {
		t.Errorf("DarkIntensity = %d, want 1", s.DarkIntensity)
	}
	if s.DefaultView != "tasks" || s.Theme != "dark" || s.ThemeColor != "purple" {
		t.Errorf("settings = %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// TestDecodeSettingsExplicitZeroIntensity verifies 0 is kept when stored
func TestDecodeSettingsExplicitZeroIntensity(t *testing.T) {
	s, err := DecodeSettings([]byte(`{"darkIntensity":0}`))
	if err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if s.DarkIntensity != 0 {
		t.Errorf("DarkIntensity = %d, want 0", s.DarkIntensity)
	}
}

// TestDecodeSettingsMalformed verifies a corrupt record is an error
func TestDecodeSettingsMalformed(t *testing.T) {
	if _, err := DecodeSettings([]byte(`{"theme":`)); err == nil {
		t.Error("expected an error")
	}
}

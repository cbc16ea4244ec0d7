package backend

import (
	"encoding/json"
	"slices"
	"strings"
)

// SettingsKey is the fixed key of the single settings record.
const SettingsKey = "userSettings"

// NotificationPolicy controls which tasks may raise reminders.
type NotificationPolicy string

const (
	NotifyAll  NotificationPolicy = "all"
	NotifyHigh NotificationPolicy = "high"
	NotifyNone NotificationPolicy = "none"
)

// Permission is the platform notification permission as last observed.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

var (
	// Views lists the values accepted for Settings.DefaultView.
	Views = []string{"today", "tasks", "calendar", "analytics"}
	// ThemeModes lists the values accepted for Settings.Theme.
	ThemeModes = []string{"light", "dark"}
	// ThemeColors lists the values accepted for Settings.ThemeColor.
	ThemeColors = []string{"purple", "blue", "green", "red", "orange"}
	// NotificationPolicies lists the values accepted for Settings.Notifications.
	NotificationPolicies = []NotificationPolicy{NotifyAll, NotifyHigh, NotifyNone}
	// Permissions lists the values accepted for Settings.NotificationPermission.
	Permissions = []Permission{PermissionDefault, PermissionGranted, PermissionDenied}
)

// Settings is the single user preferences record.
type Settings struct {
	DefaultView            string             `json:"defaultView" yaml:"default_view"`
	Notifications          NotificationPolicy `json:"notifications" yaml:"notifications"`
	Theme                  string             `json:"theme" yaml:"theme"`
	Location               string             `json:"location" yaml:"location"`
	ThemeColor             string             `json:"themeColor" yaml:"theme_color"`
	DarkIntensity          int                `json:"darkIntensity" yaml:"dark_intensity"`
	NotificationPermission Permission         `json:"notificationPermission" yaml:"notification_permission"`
}

// DefaultSettings returns the settings used before anything was saved.
func DefaultSettings() Settings {
	return Settings{
		DefaultView:            "today",
		Notifications:          NotifyAll,
		Theme:                  "light",
		Location:               "Port Harcourt",
		ThemeColor:             "purple",
		DarkIntensity:          1,
		NotificationPermission: PermissionDefault,
	}
}

// DecodeSettings decodes a stored settings record over the defaults, so
// fields missing from records written by older versions keep their default.
func DecodeSettings(raw []byte) (Settings, error) {
	s := DefaultSettings()
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// MergeOver fills every empty string field of s from base. DarkIntensity
// is left alone because 0 is a valid intensity; decode partial records
// with DecodeSettings or over the current value instead.
func (s Settings) MergeOver(base Settings) Settings {
	if s.DefaultView == "" {
		s.DefaultView = base.DefaultView
	}
	if s.Notifications == "" {
		s.Notifications = base.Notifications
	}
	if s.Theme == "" {
		s.Theme = base.Theme
	}
	if strings.TrimSpace(s.Location) == "" {
		s.Location = base.Location
	}
	if s.ThemeColor == "" {
		s.ThemeColor = base.ThemeColor
	}
	if s.NotificationPermission == "" {
		s.NotificationPermission = base.NotificationPermission
	}
	return s
}

// Validate checks that every enumerated field holds a known value.
func (s Settings) Validate() error {
	switch {
	case !slices.Contains(Views, s.DefaultView):
		return &ValidationError{Field: "defaultView", Message: "must be one of " + strings.Join(Views, ", ")}
	case !slices.Contains(NotificationPolicies, s.Notifications):
		return &ValidationError{Field: "notifications", Message: "must be one of all, high, none"}
	case !slices.Contains(ThemeModes, s.Theme):
		return &ValidationError{Field: "theme", Message: "must be light or dark"}
	case !slices.Contains(ThemeColors, s.ThemeColor):
		return &ValidationError{Field: "themeColor", Message: "must be one of " + strings.Join(ThemeColors, ", ")}
	case s.DarkIntensity < 0 || s.DarkIntensity > 2:
		return &ValidationError{Field: "darkIntensity", Message: "must be between 0 and 2"}
	case !slices.Contains(Permissions, s.NotificationPermission):
		return &ValidationError{Field: "notificationPermission", Message: "must be default, granted or denied"}
	}
	return nil
}

// Package theme maps the settings' colour choices to concrete colours.
package theme

import "kairon/backend"

// Palette is a two-stop accent gradient.
type Palette struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DarkMode is one dark colour scheme.
type DarkMode struct {
	Name   string `json:"name"`
	Bg     string `json:"bg"`
	Card   string `json:"card"`
	Input  string `json:"input"`
	Text   string `json:"text"`
	Border string `json:"border"`
}

// Completed is the palette for finished tasks regardless of theme.
var Completed = Palette{From: "#10B981", To: "#047857"}

var palettes = map[string]Palette{
	"purple": {From: "#667eea", To: "#764ba2"},
	"blue":   {From: "#3b82f6", To: "#1e40af"},
	"green":  {From: "#10b981", To: "#047857"},
	"red":    {From: "#ef4444", To: "#b91c1c"},
	"orange": {From: "#f97316", To: "#c2410c"},
}

var darkModes = []DarkMode{
	{Name: "soft", Bg: "#1e293b", Card: "#334155", Input: "#475569", Text: "#e2e8f0", Border: "#475569"},
	{Name: "normal", Bg: "#0f172a", Card: "#1e293b", Input: "#334155", Text: "#e2e8f0", Border: "#475569"},
	{Name: "deep", Bg: "#020617", Card: "#0f172a", Input: "#1e293b", Text: "#e2e8f0", Border: "#334155"},
}

// Accent returns the palette for a theme colour, falling back to purple.
func Accent(color string) Palette {
	if p, ok := palettes[color]; ok {
		return p
	}
	return palettes["purple"]
}

// Dark returns the dark mode for an intensity, clamped to 0..2.
func Dark(intensity int) DarkMode {
	return darkModes[min(max(intensity, 0), len(darkModes)-1)]
}

// Resolved is the effective look for a settings record.
type Resolved struct {
	Accent Palette   `json:"accent"`
	Dark   *DarkMode `json:"dark,omitempty"`
}

// Resolve computes the accent and, in dark theme, the dark mode.
func Resolve(s backend.Settings) Resolved {
	r := Resolved{Accent: Accent(s.ThemeColor)}
	if s.Theme == "dark" {
		d := Dark(s.DarkIntensity)
		r.Dark = &d
	}
	return r
}

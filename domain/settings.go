package domain

// Theme is the colour scheme preference of an owner.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ThemeKey is the fixed key the preference is stored under.
const ThemeKey = "theme"

func (t Theme) Valid() bool { return t == ThemeDark || t == ThemeLight }

// Toggle flips between dark and light.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Settings represents user configurable options.
type Settings struct {
	Theme Theme `json:"theme"`
	// Stored is false when Theme came from the client colour-scheme fallback.
	Stored bool `json:"stored"`
}

// ResolveTheme returns the stored theme, or the platform preference when none is stored.
func ResolveTheme(stored Theme, prefersDark bool) Settings {
	if stored.Valid() {
		return Settings{Theme: stored, Stored: true}
	}
	if prefersDark {
		return Settings{Theme: ThemeDark}
	}
	return Settings{Theme: ThemeLight}
}

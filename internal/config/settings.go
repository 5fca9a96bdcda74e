package config

import (
	"strconv"
	"strings"
	"time"
)

// SettingsGetter is an interface for retrieving settings from storage
type SettingsGetter interface {
	GetSetting(key string) (string, error)
}

// Loader provides typed access to settings with default values
type Loader struct {
	db SettingsGetter
}

// NewLoader creates a new settings loader
func NewLoader(db SettingsGetter) *Loader {
	return &Loader{db: db}
}

// Int retrieves an integer setting, returning defaultVal if not found or invalid
func (l *Loader) Int(key string, defaultVal int) int {
	if val, _ := l.db.GetSetting(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			return v
		}
	}
	return defaultVal
}

// Bool retrieves a boolean setting, returning defaultVal if not found
// Recognizes "true" as true, anything else (including "false") as false
func (l *Loader) Bool(key string, defaultVal bool) bool {
	if val, _ := l.db.GetSetting(key); val != "" {
		return val == "true"
	}
	return defaultVal
}

// String retrieves a string setting, returning defaultVal if not found or empty
func (l *Loader) String(key, defaultVal string) string {
	if val, _ := l.db.GetSetting(key); val != "" {
		return val
	}
	return defaultVal
}

// DurationSeconds retrieves a duration setting stored as seconds
func (l *Loader) DurationSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(l.Int(key, defaultSeconds)) * time.Second
}

// DurationMinutes retrieves a duration setting stored as minutes
func (l *Loader) DurationMinutes(key string, defaultMinutes int) time.Duration {
	return time.Duration(l.Int(key, defaultMinutes)) * time.Minute
}

// StringList retrieves a comma-separated list setting
func (l *Loader) StringList(key, defaultVal string) []string {
	raw := l.String(key, defaultVal)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Settings keys and defaults for subtitle operations
const (
	KeyDefaultLanguage  = "subtitles.default_language"
	KeyDefaultProviders = "subtitles.default_providers"
	KeyConcurrentJobs   = "subtitles.concurrent_downloads"
	KeySearchTimeout    = "subtitles.search_timeout_seconds"
	KeyMaxResults       = "subtitles.max_results"
	KeyTaskRetention    = "tasks.retention_minutes"
	KeyItemsPerPage     = "browse.items_per_page"

	DefaultLanguage       = "en"
	DefaultProviders      = "opensubtitles,podnapisi"
	DefaultConcurrentJobs = 3
	DefaultSearchTimeout  = 30
	DefaultMaxResults     = 15
	DefaultTaskRetention  = 5
	DefaultItemsPerPage   = 30
)

// SearchLanguages maps display names to ISO 639-1 codes for subtitle search
var SearchLanguages = map[string]string{
	"English":    "en",
	"Spanish":    "es",
	"French":     "fr",
	"German":     "de",
	"Italian":    "it",
	"Portuguese": "pt",
	"Japanese":   "ja",
	"Korean":     "ko",
	"Chinese":    "zh",
	"Russian":    "ru",
	"Arabic":     "ar",
	"Dutch":      "nl",
	"Polish":     "pl",
	"Swedish":    "sv",
	"Danish":     "da",
	"Finnish":    "fi",
	"Norwegian":  "no",
}

// LanguageCode resolves a language display name or code to an ISO 639-1 code
func LanguageCode(name string) string {
	if code, ok := SearchLanguages[name]; ok {
		return code
	}
	if len(name) == 2 {
		return strings.ToLower(name)
	}
	return DefaultLanguage
}

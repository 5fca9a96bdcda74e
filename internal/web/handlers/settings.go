package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/primetime43/PlexSubSetter/internal/config"
)

// editableSettings are the keys the settings endpoints expose, mapped to
// their default values
var editableSettings = map[string]string{
	config.KeyDefaultLanguage:  config.DefaultLanguage,
	config.KeyDefaultProviders: config.DefaultProviders,
	config.KeyConcurrentJobs:   strconv.Itoa(config.DefaultConcurrentJobs),
	config.KeySearchTimeout:    strconv.Itoa(config.DefaultSearchTimeout),
	config.KeyMaxResults:       strconv.Itoa(config.DefaultMaxResults),
	config.KeyTaskRetention:    strconv.Itoa(config.DefaultTaskRetention),
	config.KeyItemsPerPage:     strconv.Itoa(config.DefaultItemsPerPage),
}

// SettingsGet returns all stored settings plus the supported search
// languages
func (h *Handlers) SettingsGet(w http.ResponseWriter, r *http.Request) {
	stored, err := h.db.GetAllSettings()
	if err != nil {
		writeError(w, err)
		return
	}

	settings := make(map[string]string, len(editableSettings))
	for key, fallback := range editableSettings {
		if v, ok := stored[key]; ok {
			settings[key] = v
		} else {
			settings[key] = fallback
		}
	}

	languages := make([]string, 0, len(config.SearchLanguages))
	for name := range config.SearchLanguages {
		languages = append(languages, name)
	}
	sort.Strings(languages)

	writeJSON(w, http.StatusOK, map[string]any{
		"settings":  settings,
		"languages": languages,
	})
}

// SettingsUpdate stores the submitted settings. Unknown keys are rejected so
// the settings table cannot be polluted.
func (h *Handlers) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	for key := range req {
		if _, ok := editableSettings[key]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown setting: " + key})
			return
		}
	}
	for key, value := range req {
		if err := h.db.SetSetting(key, value); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

package config

import (
	"testing"
	"time"
)

type mapGetter map[string]string

func (m mapGetter) GetSetting(key string) (string, error) {
	return m[key], nil
}

func TestLoaderTypedAccess(t *testing.T) {
	loader := NewLoader(mapGetter{
		"int":     "7",
		"badint":  "seven",
		"bool":    "true",
		"str":     "hello",
		"seconds": "45",
		"list":    "a, b ,,c",
	})

	if got := loader.Int("int", 1); got != 7 {
		t.Errorf("Int = %d, want 7", got)
	}
	if got := loader.Int("badint", 1); got != 1 {
		t.Errorf("Int with invalid value = %d, want default 1", got)
	}
	if got := loader.Int("missing", 3); got != 3 {
		t.Errorf("Int missing = %d, want default 3", got)
	}
	if !loader.Bool("bool", false) {
		t.Error("Bool = false, want true")
	}
	if got := loader.String("str", "x"); got != "hello" {
		t.Errorf("String = %q, want hello", got)
	}
	if got := loader.DurationSeconds("seconds", 10); got != 45*time.Second {
		t.Errorf("DurationSeconds = %v, want 45s", got)
	}
	list := loader.StringList("list", "")
	if len(list) != 3 || list[0] != "a" || list[1] != "b" || list[2] != "c" {
		t.Errorf("StringList = %v, want [a b c]", list)
	}
}

func TestLanguageCode(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"English", "en"},
		{"German", "de"},
		{"fr", "fr"},
		{"FR", "fr"},
		{"Klingon", "en"},
	}
	for _, tt := range tests {
		if got := LanguageCode(tt.name); got != tt.expected {
			t.Errorf("LanguageCode(%q) = %q, want %q", tt.name, got, tt.expected)
		}
	}
}

package i18n

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestResolve(t *testing.T) {
	r := NewResolver("zh-CN")
	bilingual := Text{"zh-CN": "你好", "en": "hello"}

	tests := []struct {
		name     string
		text     Text
		lang     string
		expected string
	}{
		{name: "empty text", text: Text{}, lang: "en", expected: ""},
		{name: "neutral text ignores language", text: Plain("欢迎"), lang: "en", expected: "欢迎"},
		{name: "exact match", text: bilingual, lang: "en", expected: "hello"},
		{name: "regional variant matches base", text: bilingual, lang: "en-GB", expected: "hello"},
		{name: "unknown language falls back", text: bilingual, lang: "fr", expected: "你好"},
		{name: "invalid tag falls back", text: bilingual, lang: "???", expected: "你好"},
		{name: "fallback missing uses any", text: Text{"en": "only"}, lang: "de", expected: "only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.text, tt.lang); got != tt.expected {
				t.Errorf("Resolve() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestResolve_ShortKeys(t *testing.T) {
	r := NewResolver("cn")
	text := Text{"cn": "你好", "en": "hi"}

	if got := r.Resolve(text, "cn"); got != "你好" {
		t.Errorf("Resolve(cn) = %q", got)
	}
	if got := r.Resolve(text, "zh-CN"); got != "你好" {
		t.Errorf("Resolve(zh-CN) = %q", got)
	}
	if got := r.Resolve(text, "de"); got != "你好" {
		t.Errorf("Resolve(de) = %q", got)
	}
	if got := r.Resolve(text, "en-US"); got != "hi" {
		t.Errorf("Resolve(en-US) = %q", got)
	}
}

func TestResolve_UnsupportedLanguageUsesFallback(t *testing.T) {
	tests := []struct {
		name     string
		fallback string
		text     Text
		langs    []string
		expected string
	}{
		{
			name:     "full tags",
			fallback: "zh-CN",
			text:     Text{"zh-CN": "你好", "en": "hello"},
			langs:    []string{"fr", "de", "ja", "es-MX"},
			expected: "你好",
		},
		{
			name:     "short keys",
			fallback: "cn",
			text:     Text{"cn": "你好", "en": "hi"},
			langs:    []string{"de", "fr", "ko"},
			expected: "你好",
		},
		{
			name:     "english fallback",
			fallback: "en",
			text:     Text{"zh-CN": "你好", "en": "hello"},
			langs:    []string{"fr", "ru"},
			expected: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.fallback)
			for _, lang := range tt.langs {
				if got := r.Resolve(tt.text, lang); got != tt.expected {
					t.Errorf("Resolve(%s) = %q, expected %q", lang, got, tt.expected)
				}
			}
		})
	}
}

func TestText_Decode(t *testing.T) {
	var plain Text
	if err := json.Unmarshal([]byte(`"hi"`), &plain); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain[""] != "hi" {
		t.Errorf("expected neutral value, got %v", plain)
	}

	var fromYAML struct {
		Title Text `yaml:"title"`
	}
	if err := yaml.Unmarshal([]byte("title:\n  en: Lab\n  zh-CN: 实验室\n"), &fromYAML); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fromYAML.Title["en"] != "Lab" {
		t.Errorf("expected en value Lab, got %v", fromYAML.Title)
	}
}

func TestUpper(t *testing.T) {
	r := NewResolver("en")
	if got := r.Upper("exit", "en"); got != "EXIT" {
		t.Errorf("Upper() = %q, expected EXIT", got)
	}
}

// Package i18n resolves bilingual content strings.
package i18n

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Text is a localized string keyed by BCP 47 language tag.
// Content may write it as a plain string, which is stored under the
// empty key and served for every language.
type Text map[string]string

// Plain creates a language-neutral text
func Plain(s string) Text {
	return Text{"": s}
}

// String returns some value of the text, preferring the neutral one
func (t Text) String() string {
	if v, ok := t[""]; ok {
		return v
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return t[keys[0]]
}

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Plain(s)
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("text must be a string or a language map: %w", err)
	}
	*t = m
	return nil
}

func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = Plain(node.Value)
		return nil
	}
	var m map[string]string
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("text must be a string or a language map: %w", err)
	}
	*t = m
	return nil
}

// Resolver picks the best available translation for a requested language
type Resolver struct {
	fallback language.Tag
}

// aliases maps the short keys used by content files to language tags
var aliases = map[string]language.Tag{
	"cn": language.SimplifiedChinese,
}

func parseTag(s string) (language.Tag, error) {
	if tag, ok := aliases[s]; ok {
		return tag, nil
	}
	return language.Parse(s)
}

// NewResolver creates a resolver that falls back to the given language
func NewResolver(fallback string) *Resolver {
	tag, err := parseTag(fallback)
	if err != nil {
		tag = language.SimplifiedChinese
	}
	return &Resolver{fallback: tag}
}

// Fallback returns the fallback language tag
func (r *Resolver) Fallback() language.Tag {
	return r.fallback
}

// Resolve returns the translation of t best matching lang. The neutral
// value wins when present; otherwise the language matcher chooses among
// the available tags. A low-confidence guess is not a match: the fallback
// language is used instead.
func (r *Resolver) Resolve(t Text, lang string) string {
	if len(t) == 0 {
		return ""
	}
	if v, ok := t[""]; ok {
		return v
	}
	if v, ok := t[lang]; ok {
		return v
	}

	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// The fallback goes first so the matcher returns it on no match
	tags := []language.Tag{r.fallback}
	for _, k := range keys {
		if tag, err := parseTag(k); err == nil {
			tags = append(tags, tag)
		}
	}
	want, err := parseTag(lang)
	if err != nil {
		want = r.fallback
	}
	matcher := language.NewMatcher(tags)
	_, idx, conf := matcher.Match(want)
	if idx > 0 && (conf >= language.High || sameBase(want, tags[idx])) {
		// idx counts the fallback slot
		return t[tagKey(keys, tags[idx])]
	}
	if k := tagKey(keys, r.fallback); k != "" {
		return t[k]
	}
	return t.String()
}

// Upper upper-cases s using the casing rules of lang
func (r *Resolver) Upper(s, lang string) string {
	tag, err := parseTag(lang)
	if err != nil {
		tag = r.fallback
	}
	return cases.Upper(tag).String(s)
}

func tagKey(keys []string, tag language.Tag) string {
	for _, k := range keys {
		if parsed, err := parseTag(k); err == nil && parsed == tag {
			return k
		}
	}
	return ""
}

func sameBase(a, b language.Tag) bool {
	ab, _ := a.Base()
	bb, _ := b.Base()
	return ab == bb
}

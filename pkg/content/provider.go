package content

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AshramC/YXZX-ARG/pkg/ending"
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/infiltration"
)

// ErrContentMissing is returned when the core campus content cannot be
// loaded. The game cannot start without it.
var ErrContentMissing = errors.New("core content missing")

// File names inside a language directory
const (
	ScheduleFile = "schedule.yaml"
	EventsFile   = "events.yaml"
	PhoneFile    = "phone.yaml"
	EndingFile   = "ending.yaml"
	SpeakersFile = "speakers.yaml"
	LevelsDir    = "levels"
)

// Provider is the read-only content source consumed by the engines
type Provider interface {
	Language() string
	Schedule() *Schedule
	Event(id string) (*Event, bool)
	Phone(triggerID string) Threads
	Levels() infiltration.Library
	Ending() *ending.Show
	Speakers() map[string]i18n.Text
}

// Bundle is the content of one language, fully loaded
type Bundle struct {
	Lang        string
	ScheduleDef *Schedule
	EventDefs   *Events
	PhoneDefs   Phone
	LevelDefs   infiltration.Library
	EndingDef   *ending.Show
	SpeakerDefs map[string]i18n.Text
}

// Ensure Bundle implements Provider
var _ Provider = (*Bundle)(nil)

func (b *Bundle) Language() string { return b.Lang }

func (b *Bundle) Schedule() *Schedule { return b.ScheduleDef }

func (b *Bundle) Event(id string) (*Event, bool) {
	if b.EventDefs == nil {
		return nil, false
	}
	ev, ok := b.EventDefs.Events[id]
	return ev, ok && ev != nil
}

func (b *Bundle) Phone(triggerID string) Threads { return b.PhoneDefs[triggerID] }

func (b *Bundle) Levels() infiltration.Library { return b.LevelDefs }

func (b *Bundle) Ending() *ending.Show { return b.EndingDef }

func (b *Bundle) Speakers() map[string]i18n.Text { return b.SpeakerDefs }

// Loader reads bundles from a data directory laid out as
// <dir>/<lang>/{schedule,events,phone,ending}.yaml and <dir>/<lang>/levels/.
// A file missing for a language is read from the fallback language.
type Loader struct {
	dir      string
	fallback string
	logger   *slog.Logger

	// lang -> *Bundle, only for languages with their own directory
	bundles sync.Map
}

// NewLoader creates a loader rooted at dir
func NewLoader(dir, fallback string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, fallback: fallback, logger: logger}
}

// Load returns the bundle for lang. A language with its own directory is
// read once and the bundle is shared between callers, who must treat it as
// read-only.
func (l *Loader) Load(lang string) (*Bundle, error) {
	if lang == "" {
		lang = l.fallback
	}
	if cached, ok := l.bundles.Load(lang); ok {
		return cached.(*Bundle), nil
	}
	b, err := l.read(lang)
	if err != nil {
		return nil, err
	}
	if !l.hasLanguage(lang) {
		return b, nil
	}
	actual, _ := l.bundles.LoadOrStore(lang, b)
	return actual.(*Bundle), nil
}

func (l *Loader) hasLanguage(lang string) bool {
	info, err := os.Stat(filepath.Join(l.dir, lang))
	return err == nil && info.IsDir()
}

// read parses every content file for lang
func (l *Loader) read(lang string) (*Bundle, error) {
	b := &Bundle{Lang: lang}

	b.ScheduleDef = &Schedule{}
	if err := l.decode(lang, ScheduleFile, b.ScheduleDef, true); err != nil {
		return nil, err
	}
	b.EventDefs = &Events{}
	if err := l.decode(lang, EventsFile, b.EventDefs, true); err != nil {
		return nil, err
	}
	if len(b.ScheduleDef.TimeSlots) == 0 || len(b.EventDefs.Events) == 0 {
		return nil, fmt.Errorf("schedule or events empty for %s: %w", lang, ErrContentMissing)
	}

	b.PhoneDefs = Phone{}
	if err := l.decode(lang, PhoneFile, &b.PhoneDefs, false); err != nil {
		return nil, err
	}
	b.EndingDef = &ending.Show{}
	if err := l.decode(lang, EndingFile, b.EndingDef, false); err != nil {
		return nil, err
	}
	b.SpeakerDefs = map[string]i18n.Text{}
	if err := l.decode(lang, SpeakersFile, &b.SpeakerDefs, false); err != nil {
		return nil, err
	}

	levels, err := l.loadLevels(lang)
	if err != nil {
		return nil, err
	}
	b.LevelDefs = levels

	l.logger.Info("Content loaded",
		"lang", lang,
		"slots", len(b.ScheduleDef.TimeSlots),
		"events", len(b.EventDefs.Events),
		"phone_triggers", len(b.PhoneDefs),
		"levels", len(b.LevelDefs),
		"ending_sequences", len(b.EndingDef.Scripts))
	return b, nil
}

// resolve finds name for lang, then for the fallback language
func (l *Loader) resolve(lang, name string) (string, bool) {
	for _, candidate := range []string{lang, l.fallback} {
		if candidate == "" {
			continue
		}
		path := filepath.Join(l.dir, candidate, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func (l *Loader) decode(lang, name string, out any, required bool) error {
	path, ok := l.resolve(lang, name)
	if !ok {
		if required {
			return fmt.Errorf("%s not found for %s: %w", name, lang, ErrContentMissing)
		}
		l.logger.Debug("Optional content not found", "file", name, "lang", lang)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		if required {
			return fmt.Errorf("failed to parse %s: %v: %w", path, err, ErrContentMissing)
		}
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadLevels reads every level file of lang, falling back per directory
func (l *Loader) loadLevels(lang string) (infiltration.Library, error) {
	lib := infiltration.Library{}
	dir, ok := l.resolve(lang, LevelsDir)
	if !ok {
		return lib, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("Failed to read level file", "path", path, "error", err)
			return nil
		}
		var level infiltration.Level
		if err := yaml.Unmarshal(data, &level); err != nil {
			l.logger.Warn("Failed to parse level file", "path", path, "error", err)
			return nil
		}
		if level.ID == "" {
			l.logger.Warn("Level without id", "path", path)
			return nil
		}
		lib[level.ID] = &level
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk levels directory: %w", err)
	}
	return lib, nil
}

// Languages lists the language directories under the data directory
func (l *Loader) Languages() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list content languages: %w", err)
	}
	var langs []string
	for _, e := range entries {
		if e.IsDir() {
			langs = append(langs, e.Name())
		}
	}
	sort.Strings(langs)
	return langs, nil
}

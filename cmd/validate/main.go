package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/AshramC/YXZX-ARG/pkg/content"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <content_dir> [lang...]\n", os.Args[0])
		os.Exit(1)
	}

	dir := os.Args[1]
	loader := content.NewLoader(dir, "", slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	langs := os.Args[2:]
	if len(langs) == 0 {
		var err error
		if langs, err = loader.Languages(); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, lang := range langs {
		v := &ContentValidator{}
		if err := v.validateLanguage(loader, dir, lang); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}

	fmt.Println("Content is valid!")
}

type ContentValidator struct {
	errors []string
}

func (v *ContentValidator) validateLanguage(loader *content.Loader, dir, lang string) error {
	fmt.Printf("Validating %s...\n", lang)

	b, err := loader.Load(lang)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", lang, err)
	}

	v.errors = nil
	for _, e := range content.Validate(b) {
		v.addError(e.Error())
	}
	v.validateIDs(b)
	v.validateLevelFilenames(filepath.Join(dir, lang, content.LevelsDir))

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", lang, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *ContentValidator) validateIDs(b *content.Bundle) {
	ids := make([]string, 0, len(b.EventDefs.Events))
	for id := range b.EventDefs.Events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v.validateIDFormat("event", id)
	}
	for id := range b.LevelDefs {
		v.validateIDFormat("level", id)
	}
	for _, slot := range b.ScheduleDef.TimeSlots {
		v.validateIDFormat("time slot", slot.ID)
	}
}

func (v *ContentValidator) validateLevelFilenames(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !isValidFilename(name) {
			v.addError(fmt.Sprintf("level filename '%s' must be lowercase snake_case", e.Name()))
		}
	}
}

func (v *ContentValidator) validateIDFormat(fieldName, id string) {
	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s id '%s' must be lowercase snake_case", fieldName, id))
	}
}

func (v *ContentValidator) addError(msg string) {
	v.errors = append(v.errors, msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidFilename(name string) bool {
	return validFilenameRegex.MatchString(name)
}

package archive

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultExtension is the file extension of a plugin archive.
const DefaultExtension = ".jpl"

// Placeholders recognised in entry templates.
const (
	PlaceholderProject = "{project}"
	PlaceholderTarget  = "{target}"
	PlaceholderName    = "{name}"
)

var (
	// ErrEmptyLayout is returned when a layout has no entries.
	ErrEmptyLayout = errors.New("layout has no entries")
	// ErrEntryNameRequired is returned when an entry has no archive name.
	ErrEntryNameRequired = errors.New("entry name must be provided")
	// ErrEntrySourceRequired is returned when an entry has no source template.
	ErrEntrySourceRequired = errors.New("entry source must be provided")
	// ErrDuplicateEntry is returned when two entries share an archive name.
	ErrDuplicateEntry = errors.New("duplicate entry name")
	// ErrNestedEntry is returned when an entry name contains a path separator.
	ErrNestedEntry = errors.New("entry name must be flat")
	// ErrBadExtension is returned when the archive extension does not start with a dot.
	ErrBadExtension = errors.New("extension must start with a dot")
)

// EntryTemplate describes one archive entry before placeholders are expanded.
type EntryTemplate struct {
	// Source is the source file path template, e.g. "{target}{name}.dll".
	Source string `yaml:"source"`
	// Name is the archive-internal name template, e.g. "{name}.dll".
	Name string `yaml:"name"`
}

// Layout is the ordered set of entries a plugin archive is built from.
type Layout struct {
	// Extension is appended to the base name to form the archive file name.
	Extension string `yaml:"extension"`
	// Entries are written into the archive in this order.
	Entries []EntryTemplate `yaml:"entries"`
}

// DefaultLayout returns the four-entry layout of a Jamcast plugin:
// the plugin DLL, the GoogleMusic dependency, the manifest and the license.
func DefaultLayout() *Layout {
	return &Layout{
		Extension: DefaultExtension,
		Entries: []EntryTemplate{
			{Source: PlaceholderTarget + PlaceholderName + ".dll", Name: PlaceholderName + ".dll"},
			{Source: PlaceholderTarget + "GoogleMusic.dll", Name: "GoogleMusic.dll"},
			{Source: PlaceholderTarget + "plugin.xml", Name: "plugin.xml"},
			{Source: PlaceholderProject + "LICENSE", Name: "LICENSE"},
		},
	}
}

// Validate checks that the layout can produce a well-formed flat archive.
// It does not modify the layout; an empty Extension means DefaultExtension.
// Name templates are compared verbatim, so duplicates that only appear after
// {name} expansion are not detected here.
func (l *Layout) Validate() error {
	if l.Extension != "" && !strings.HasPrefix(l.Extension, ".") {
		return fmt.Errorf("%q: %w", l.Extension, ErrBadExtension)
	}

	if len(l.Entries) == 0 {
		return ErrEmptyLayout
	}

	seen := make(map[string]struct{}, len(l.Entries))

	for i, entry := range l.Entries {
		if strings.TrimSpace(entry.Source) == "" {
			return fmt.Errorf("entry %d: %w", i, ErrEntrySourceRequired)
		}

		if strings.TrimSpace(entry.Name) == "" {
			return fmt.Errorf("entry %d: %w", i, ErrEntryNameRequired)
		}

		if strings.ContainsAny(entry.Name, `/\`) {
			return fmt.Errorf("entry %q: %w", entry.Name, ErrNestedEntry)
		}

		if _, ok := seen[entry.Name]; ok {
			return fmt.Errorf("entry %q: %w", entry.Name, ErrDuplicateEntry)
		}

		seen[entry.Name] = struct{}{}
	}

	return nil
}

// Plan expands the layout for the given directories and base name.
// Directories are used as-is: expansion is plain string concatenation and
// never inserts or normalizes path separators.
func (l *Layout) Plan(projectDir, targetDir, name string) *Plan {
	replacer := strings.NewReplacer(
		PlaceholderProject, projectDir,
		PlaceholderTarget, targetDir,
		PlaceholderName, name,
	)

	extension := l.Extension
	if extension == "" {
		extension = DefaultExtension
	}

	entries := make([]Entry, 0, len(l.Entries))
	for _, tmpl := range l.Entries {
		entries = append(entries, Entry{
			Source: replacer.Replace(tmpl.Source),
			Name:   replacer.Replace(tmpl.Name),
		})
	}

	return &Plan{
		ArchivePath: projectDir + name + extension,
		Entries:     entries,
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/jpl-packager/internal/domain/archive"
)

// Config holds the three packaging parameters taken from the command line.
type Config struct {
	// ProjectDir holds the project file, LICENSE and the output archive.
	ProjectDir string
	// TargetDir is the build output directory with the compiled artifacts.
	TargetDir string
	// Name is the base name shared by the plugin DLL and the archive.
	Name string
}

const (
	// DefaultFilePermissions is the permission of files written by the packager.
	DefaultFilePermissions = 0o644

	// dirCutset lists the trailing characters stripped from directory arguments.
	dirCutset = " ."
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrProjectDirRequired is returned when the project directory is empty.
	ErrProjectDirRequired = errors.New("project directory must be provided")
	// ErrTargetDirRequired is returned when the target directory is empty.
	ErrTargetDirRequired = errors.New("target directory must be provided")
	// ErrNameRequired is returned when the base name is empty.
	ErrNameRequired = errors.New("base name must be provided")
)

// New builds a Config from raw arguments, trimming both directories.
func New(projectDir, targetDir, name string) *Config {
	return &Config{
		ProjectDir: TrimDir(projectDir),
		TargetDir:  TrimDir(targetDir),
		Name:       name,
	}
}

// TrimDir strips every trailing space and period from a directory argument.
// Build tools on Windows pass "$(ProjectDir)." to dodge the escaped quote a
// trailing backslash would produce; the dot and stray spaces go away here.
func TrimDir(dir string) string {
	return strings.TrimRight(dir, dirCutset)
}

// Validate checks that all three parameters are present.
// Directories are expected to be trimmed already; see New.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ProjectDir == "" {
		return ErrProjectDirRequired
	}

	if cfg.TargetDir == "" {
		return ErrTargetDirRequired
	}

	if cfg.Name == "" {
		return ErrNameRequired
	}

	return nil
}

// LoadLayout reads an archive layout from a YAML file and validates it.
// An empty path yields the default layout without touching the filesystem.
func LoadLayout(path string) (*archive.Layout, error) {
	if path == "" {
		return archive.DefaultLayout(), nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	var layout archive.Layout
	if err = yaml.Unmarshal(contents, &layout); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}

	if err = layout.Validate(); err != nil {
		return nil, fmt.Errorf("validate layout: %w", err)
	}

	return &layout, nil
}

// SaveLayout writes layout to path in YAML.
func SaveLayout(path string, layout *archive.Layout) error {
	data, err := MarshalLayout(layout)
	if err != nil {
		return err
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}

	return nil
}

// MarshalLayout validates layout and encodes it in YAML.
func MarshalLayout(layout *archive.Layout) ([]byte, error) {
	if layout == nil {
		return nil, errConfigIsNotSet
	}

	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("validate layout: %w", err)
	}

	data, err := yaml.Marshal(layout)
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}

	return data, nil
}

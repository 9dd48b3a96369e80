package packager

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/jpl-packager/internal/config"
	"github.com/oshokin/jpl-packager/internal/repository/archive"
)

const pluginName = "Jamcast.Plugins.GoogleMusic"

// fixture is a project tree with a build output directory inside it.
type fixture struct {
	projectDir string
	targetDir  string
	sources    map[string][]byte
}

// newFixture lays out the four default sources and a stale archive.
// Directories end with a separator, as build tools pass them.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	sep := string(os.PathSeparator)
	projectDir := t.TempDir() + sep
	targetDir := projectDir + "bin" + sep + "Release" + sep

	require.NoError(t, os.MkdirAll(targetDir, 0o750))

	f := &fixture{
		projectDir: projectDir,
		targetDir:  targetDir,
		sources: map[string][]byte{
			pluginName + ".dll": []byte("MZ plugin assembly"),
			"GoogleMusic.dll":   []byte("MZ dependency assembly"),
			"plugin.xml":        []byte(`<plugin id="googlemusic"/>`),
			"LICENSE":           []byte("MIT License"),
		},
	}

	for name, content := range f.sources {
		dir := targetDir
		if name == "LICENSE" {
			dir = projectDir
		}

		require.NoError(t, os.WriteFile(dir+name, content, 0o600))
	}

	require.NoError(t, os.WriteFile(f.archivePath(), []byte("stale archive"), 0o600))

	return f
}

func (f *fixture) archivePath() string {
	return f.projectDir + pluginName + ".jpl"
}

func (f *fixture) options() *Options {
	return &Options{
		ProjectDir: f.projectDir,
		TargetDir:  f.targetDir,
		Name:       pluginName,
	}
}

// readArchive returns entry names in order and their contents.
func readArchive(t *testing.T, path string) ([]string, map[string][]byte) {
	t.Helper()

	r, err := archive.Open(path)
	require.NoError(t, err)

	defer func() {
		_ = r.Close()
	}()

	var (
		names    []string
		contents = make(map[string][]byte)
	)

	for _, entry := range r.Entries() {
		names = append(names, entry.Name)

		rc, err := r.OpenEntry(entry.Name)
		require.NoError(t, err)

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		contents[entry.Name] = data
	}

	return names, contents
}

// TestRun_ReplacesArchive checks replacement, entry count and content fidelity.
func TestRun_ReplacesArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	result, err := Run(context.Background(), f.options())
	require.NoError(t, err)
	require.Equal(t, f.archivePath(), result.ArchivePath)
	require.Len(t, result.Entries, 4)
	require.Positive(t, result.Size)

	names, contents := readArchive(t, f.archivePath())
	require.Equal(t, []string{pluginName + ".dll", "GoogleMusic.dll", "plugin.xml", "LICENSE"}, names)
	require.Equal(t, f.sources, contents)
}

// TestRun_TrimsDirectoryArguments accepts the "$(ProjectDir). " form.
func TestRun_TrimsDirectoryArguments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	opts := f.options()
	opts.ProjectDir += ". "
	opts.TargetDir += ". "

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, f.archivePath(), result.ArchivePath)
}

// TestRun_MissingPreviousArchive fails before creating anything.
func TestRun_MissingPreviousArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.Remove(f.archivePath()))

	_, err := Run(context.Background(), f.options())
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(f.archivePath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_AllowMissing builds a first archive when asked to.
func TestRun_AllowMissing(t *testing.T) {
	t.Parallel()

	for _, atomic := range []bool{false, true} {
		f := newFixture(t)
		require.NoError(t, os.Remove(f.archivePath()))

		opts := f.options()
		opts.AllowMissing = true
		opts.Atomic = atomic

		_, err := Run(context.Background(), opts)
		require.NoError(t, err, "atomic=%v", atomic)

		_, contents := readArchive(t, f.archivePath())
		require.Equal(t, f.sources, contents)
	}
}

// TestRun_MissingSource fails and leaves no readable archive behind,
// whether the first or the last entry is missing.
func TestRun_MissingSource(t *testing.T) {
	t.Parallel()

	cases := map[string]func(f *fixture) string{
		"plugin dll": func(f *fixture) string { return f.targetDir + pluginName + ".dll" },
		"license":    func(f *fixture) string { return f.projectDir + "LICENSE" },
	}

	for name, source := range cases {
		source := source

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			require.NoError(t, os.Remove(source(f)))

			_, err := Run(context.Background(), f.options())
			require.ErrorIs(t, err, os.ErrNotExist)

			// The stale archive is gone and what replaced it cannot be opened.
			data, err := os.ReadFile(f.archivePath())
			require.NoError(t, err)
			require.NotEqual(t, []byte("stale archive"), data)

			_, err = archive.Open(f.archivePath())
			require.Error(t, err)
		})
	}
}

// TestRun_Atomic replaces the archive with a complete one.
func TestRun_Atomic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	opts := f.options()
	opts.Atomic = true

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	names, contents := readArchive(t, f.archivePath())
	require.Len(t, names, 4)
	require.Equal(t, f.sources, contents)

	leftovers, err := filepath.Glob(filepath.Join(f.projectDir, ".*"+pluginName+"*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

// TestRun_Atomic_KeepsPreviousOnFailure leaves the stale archive untouched.
func TestRun_Atomic_KeepsPreviousOnFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.Remove(f.projectDir+"LICENSE"))

	opts := f.options()
	opts.Atomic = true

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, os.ErrNotExist)

	data, err := os.ReadFile(f.archivePath())
	require.NoError(t, err)
	require.Equal(t, []byte("stale archive"), data)
}

// TestRun_Atomic_MissingPreviousArchive keeps the hard precondition.
func TestRun_Atomic_MissingPreviousArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.Remove(f.archivePath()))

	opts := f.options()
	opts.Atomic = true

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(f.archivePath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_CustomLayout packs only what the layout file lists.
func TestRun_CustomLayout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	layoutPath := filepath.Join(t.TempDir(), "layout.yaml")
	layout := "extension: .zip\nentries:\n" +
		"  - source: \"{target}plugin.xml\"\n    name: manifest.xml\n" +
		"  - source: \"{project}LICENSE\"\n    name: LICENSE.txt\n"
	require.NoError(t, os.WriteFile(layoutPath, []byte(layout), config.DefaultFilePermissions))

	archivePath := f.projectDir + pluginName + ".zip"
	require.NoError(t, os.WriteFile(archivePath, nil, 0o600))

	opts := f.options()
	opts.LayoutPath = layoutPath

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, archivePath, result.ArchivePath)

	names, contents := readArchive(t, archivePath)
	require.Equal(t, []string{"manifest.xml", "LICENSE.txt"}, names)
	require.Equal(t, f.sources["plugin.xml"], contents["manifest.xml"])
}

// TestRun_HostProcessNotRunning only logs and never blocks packaging.
func TestRun_HostProcessNotRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	opts := f.options()
	opts.HostProcess = "jpl-packager-no-such-host.exe"

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
}

// TestRun_InvalidOptions rejects nil and incomplete options.
func TestRun_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), nil)
	require.Error(t, err)

	_, err = Run(context.Background(), &Options{ProjectDir: "p", TargetDir: "t"})
	require.ErrorIs(t, err, config.ErrNameRequired)
}

// TestBuildAtomic_RemovesPlaceholderOnFailedSwap leaves no empty archive
// behind when the first atomic build cannot be swapped in.
func TestBuildAtomic_RemovesPlaceholderOnFailedSwap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.Remove(f.archivePath()))

	opts := f.options()
	opts.Atomic = true
	opts.AllowMissing = true

	plan, err := Prepare(opts)
	require.NoError(t, err)

	errSwap := errors.New("rename failed")
	pkg := &packager{
		plan: plan,
		opts: opts,
		apply: func(_ io.Reader, options goupdate.Options) error {
			// The placeholder exists while the swap runs.
			_, statErr := os.Stat(options.TargetPath)
			require.NoError(t, statErr)

			return errSwap
		},
	}

	_, err = pkg.buildAtomic(context.Background())
	require.ErrorIs(t, err, errSwap)

	_, err = os.Stat(f.archivePath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestBuildAtomic_FailedSwapKeepsPreviousArchive does not remove an archive
// that existed before the run.
func TestBuildAtomic_FailedSwapKeepsPreviousArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	opts := f.options()
	opts.Atomic = true

	plan, err := Prepare(opts)
	require.NoError(t, err)

	pkg := &packager{
		plan: plan,
		opts: opts,
		apply: func(io.Reader, goupdate.Options) error {
			return errors.New("rename failed")
		},
	}

	_, err = pkg.buildAtomic(context.Background())
	require.Error(t, err)

	data, err := os.ReadFile(f.archivePath())
	require.NoError(t, err)
	require.Equal(t, []byte("stale archive"), data)
}

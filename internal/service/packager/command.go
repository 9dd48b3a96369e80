package packager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/dustin/go-humanize"

	"github.com/oshokin/jpl-packager/internal/config"
	domain "github.com/oshokin/jpl-packager/internal/domain/archive"
	"github.com/oshokin/jpl-packager/internal/logger"
	"github.com/oshokin/jpl-packager/internal/repository/archive"
	"github.com/oshokin/jpl-packager/internal/service/common"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ProjectDir is the raw project directory argument; trailing spaces and dots are stripped.
	ProjectDir string
	// TargetDir is the raw build output directory argument; trimmed the same way.
	TargetDir string
	// Name is the base name of the plugin DLL and of the archive.
	Name string
	// LayoutPath is an optional YAML layout replacing the default four entries.
	LayoutPath string
	// Atomic builds the archive in memory and swaps it in only when complete.
	Atomic bool
	// AllowMissing tolerates the absence of a previous archive.
	AllowMissing bool
	// HostProcess is the plugin host executable to warn about when it is running.
	HostProcess string
}

// Result describes a successfully written archive.
type Result struct {
	// ArchivePath is where the archive was written.
	ArchivePath string
	// Entries are the stored entries in write order.
	Entries []archive.WrittenEntry
	// Size is the archive file size in bytes.
	Size int64
}

// packager holds the expanded plan for a single run.
// It is unexported; callers should use Run.
type packager struct {
	// plan is the archive path and the entries to write.
	plan *domain.Plan
	// opts are the caller's switches.
	opts *Options
	// apply swaps a finished archive into place in atomic mode.
	apply func(update io.Reader, opts goupdate.Options) error
}

// errNoOptions is returned when Run is called without options.
var errNoOptions = errors.New("packager options are not set")
// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "jpl-packager")

	plan, err := Prepare(opts)
	if err != nil {
		return nil, err
	}

	pkg := &packager{
		plan:  plan,
		opts:  opts,
		apply: goupdate.Apply,
	}

	ctx = logger.WithKV(ctx, "archive", plan.ArchivePath)

	pkg.warnIfHostRunning(ctx)

	var entries []archive.WrittenEntry
	if opts.Atomic {
		entries, err = pkg.buildAtomic(ctx)
	} else {
		entries, err = pkg.build(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("packager failed: %w", err)
	}

	info, err := os.Stat(plan.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	logger.InfoKV(ctx, "Archive created",
		"entries", len(entries),
		"size", humanize.IBytes(uint64(info.Size())), //nolint:gosec // File sizes are never negative.
	)

	return &Result{
		ArchivePath: plan.ArchivePath,
		Entries:     entries,
		Size:        info.Size(),
	}, nil
}

// Prepare validates the options and expands the layout into a plan.
// Verification uses it too, so both commands agree on paths and names.
func Prepare(opts *Options) (*domain.Plan, error) {
	if opts == nil {
		return nil, errNoOptions
	}

	cfg := config.New(opts.ProjectDir, opts.TargetDir, opts.Name)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	layout, err := config.LoadLayout(opts.LayoutPath)
	if err != nil {
		return nil, err
	}

	return layout.Plan(cfg.ProjectDir, cfg.TargetDir, cfg.Name), nil
}

// build replaces the archive in place: delete, create, write, close.
// A failure after creation leaves whatever was written so far on disk.
func (p *packager) build(ctx context.Context) ([]archive.WrittenEntry, error) {
	if err := p.removePrevious(ctx); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "Creating archive")

	writer, err := archive.Create(p.plan.ArchivePath)
	if err != nil {
		return nil, err
	}

	// Release the handle on failure without finalizing, so a partial run
	// never leaves a readable archive. Abort after Close does nothing.
	defer func() {
		_ = writer.Abort()
	}()

	entries, err := p.writeEntries(ctx, writer)
	if err != nil {
		return nil, err
	}

	if err = writer.Close(); err != nil {
		return nil, err
	}

	return entries, nil
}

// buildAtomic assembles the archive in memory and applies it with go-update,
// so the previous archive is replaced only by a complete one.
func (p *packager) buildAtomic(ctx context.Context) ([]archive.WrittenEntry, error) {
	placeholderNeeded, err := p.checkPrevious(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	writer := archive.NewWriter(&buf)

	entries, err := p.writeEntries(ctx, writer)
	if err != nil {
		_ = writer.Abort()
		return nil, err
	}

	if err = writer.Close(); err != nil {
		return nil, err
	}

	checksum, err := common.Checksum(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}

	// go-update swaps an existing target; give it one on a first run.
	if placeholderNeeded {
		if err = os.WriteFile(p.plan.ArchivePath, nil, config.DefaultFilePermissions); err != nil {
			return nil, fmt.Errorf("create placeholder archive: %w", err)
		}
	}

	logger.Debug(ctx, "Applying archive")

	options := goupdate.Options{
		TargetPath: p.plan.ArchivePath,
		TargetMode: config.DefaultFilePermissions,
		Checksum:   checksum,
		Hash:       common.DefaultChecksumFunction,
	}

	if err = p.apply(bytes.NewReader(buf.Bytes()), options); err != nil {
		if placeholderNeeded {
			_ = os.Remove(p.plan.ArchivePath)
		}

		return nil, fmt.Errorf("apply archive: %w", err)
	}

	return entries, nil
}

// writeEntries copies every planned entry into writer in order.
func (p *packager) writeEntries(ctx context.Context, writer *archive.Writer) ([]archive.WrittenEntry, error) {
	entries := make([]archive.WrittenEntry, 0, len(p.plan.Entries))

	for _, entry := range p.plan.Entries {
		written, err := writer.AddFile(entry)
		if err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Entry written",
			"entry", written.Name,
			"source", written.Source,
			"size", humanize.IBytes(uint64(written.Size)), //nolint:gosec // Copied byte counts are never negative.
		)

		entries = append(entries, *written)
	}

	return entries, nil
}

// removePrevious deletes the previous archive.
// Its absence is an error unless AllowMissing is set.
func (p *packager) removePrevious(ctx context.Context) error {
	logger.Debug(ctx, "Removing previous archive")

	err := os.Remove(p.plan.ArchivePath)
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) && p.opts.AllowMissing {
		logger.Info(ctx, "No previous archive to remove, continuing")
		return nil
	}

	return fmt.Errorf("remove previous archive: %w", err)
}

// checkPrevious enforces the same precondition as removePrevious without
// deleting anything. It reports whether the archive is absent.
func (p *packager) checkPrevious(ctx context.Context) (bool, error) {
	_, err := os.Stat(p.plan.ArchivePath)
	if err == nil {
		return false, nil
	}

	if errors.Is(err, os.ErrNotExist) && p.opts.AllowMissing {
		logger.Info(ctx, "No previous archive to replace, continuing")
		return true, nil
	}

	return false, fmt.Errorf("check previous archive: %w", err)
}

// warnIfHostRunning logs a warning when the plugin host may hold the archive open.
func (p *packager) warnIfHostRunning(ctx context.Context) {
	if p.opts.HostProcess == "" {
		return
	}

	pids, err := common.FindProcesses(p.opts.HostProcess)
	if err != nil {
		logger.WarnKV(ctx, "Unable to list running processes", "error", err)
		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "Plugin host is running, the archive may be locked",
			"process", p.opts.HostProcess,
			"pids", pids,
		)
	}
}

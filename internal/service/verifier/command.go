package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	domain "github.com/oshokin/jpl-packager/internal/domain/archive"
	"github.com/oshokin/jpl-packager/internal/logger"
	"github.com/oshokin/jpl-packager/internal/repository/archive"
	"github.com/oshokin/jpl-packager/internal/service/common"
	"github.com/oshokin/jpl-packager/internal/service/packager"
)

// Status is the verdict for one entry.
type Status string

const (
	// StatusOK means the entry matches its source and position.
	StatusOK Status = "ok"
	// StatusMismatch means the stored bytes differ from the source file.
	StatusMismatch Status = "content differs"
	// StatusMissing means a planned entry is absent from the archive.
	StatusMissing Status = "missing"
	// StatusSourceMissing means the source file cannot be read any more.
	StatusSourceMissing Status = "source unreadable"
	// StatusOutOfOrder means the entry is stored at an unexpected position.
	StatusOutOfOrder Status = "out of order"
	// StatusUnexpected means the archive holds an entry the layout does not list.
	StatusUnexpected Status = "unexpected"
)

var (
	// ErrVerificationFailed is returned when at least one entry is not StatusOK.
	ErrVerificationFailed = errors.New("archive verification failed")
	// errNoOutput is returned when the report has nowhere to go.
	errNoOutput = errors.New("report output is not set")
)

// EntryReport is the verdict for one planned or stored entry.
type EntryReport struct {
	// Name is the archive-internal name.
	Name string
	// Source is the planned source file, empty for unexpected entries.
	Source string
	// Size is the uncompressed stored size.
	Size uint64
	// CompressedSize is the stored size.
	CompressedSize uint64
	// Status is the verdict.
	Status Status
}

// Report collects the verdicts for an archive.
type Report struct {
	// ArchivePath is the verified archive.
	ArchivePath string
	// Entries are planned entries in layout order followed by unexpected ones.
	Entries []EntryReport
}

// OK reports whether every entry passed.
func (r *Report) OK() bool {
	for _, entry := range r.Entries {
		if entry.Status != StatusOK {
			return false
		}
	}

	return true
}

// Run verifies the archive described by opts and renders the report to out.
// Only the path-related fields of opts are used.
func Run(ctx context.Context, opts *packager.Options, out io.Writer) (*Report, error) {
	if out == nil {
		return nil, errNoOutput
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "jpl-verifier")

	plan, err := packager.Prepare(opts)
	if err != nil {
		return nil, err
	}

	report, err := Verify(ctx, plan)
	if err != nil {
		return nil, err
	}

	if err = Render(out, report); err != nil {
		return report, fmt.Errorf("render report: %w", err)
	}

	if !report.OK() {
		return report, ErrVerificationFailed
	}

	logger.InfoKV(ctx, "Archive verified", "archive", plan.ArchivePath, "entries", len(report.Entries))

	return report, nil
}

// Verify compares the archive at plan.ArchivePath with the planned entries.
func Verify(ctx context.Context, plan *domain.Plan) (*Report, error) {
	reader, err := archive.Open(plan.ArchivePath)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = reader.Close()
	}()

	stored := reader.Entries()

	position := make(map[string]int, len(stored))
	for i, entry := range stored {
		position[entry.Name] = i
	}

	report := &Report{
		ArchivePath: plan.ArchivePath,
		Entries:     make([]EntryReport, 0, len(plan.Entries)),
	}

	planned := make(map[string]struct{}, len(plan.Entries))
	for _, name := range plan.Names() {
		planned[name] = struct{}{}
	}

	for i, entry := range plan.Entries {
		entryReport := EntryReport{
			Name:   entry.Name,
			Source: entry.Source,
		}

		index, ok := position[entry.Name]
		if !ok {
			entryReport.Status = StatusMissing
			report.Entries = append(report.Entries, entryReport)

			continue
		}

		entryReport.Size = stored[index].Size
		entryReport.CompressedSize = stored[index].CompressedSize
		entryReport.Status = compareEntry(ctx, reader, entry)

		if entryReport.Status == StatusOK && index != i {
			entryReport.Status = StatusOutOfOrder
		}

		report.Entries = append(report.Entries, entryReport)
	}

	for _, entry := range stored {
		if _, ok := planned[entry.Name]; ok {
			continue
		}

		report.Entries = append(report.Entries, EntryReport{
			Name:           entry.Name,
			Size:           entry.Size,
			CompressedSize: entry.CompressedSize,
			Status:         StatusUnexpected,
		})
	}

	return report, nil
}

// compareEntry checks the stored bytes of entry against its source file.
func compareEntry(ctx context.Context, reader *archive.Reader, entry domain.Entry) Status {
	want, err := common.FileChecksum(entry.Source)
	if err != nil {
		logger.DebugKV(ctx, "Source unreadable", "source", entry.Source, "error", err)
		return StatusSourceMissing
	}

	rc, err := reader.OpenEntry(entry.Name)
	if err != nil {
		logger.DebugKV(ctx, "Entry unreadable", "entry", entry.Name, "error", err)
		return StatusMismatch
	}

	defer func() {
		_ = rc.Close()
	}()

	// A CRC failure surfaces here as a read error.
	got, err := common.Checksum(rc)
	if err != nil {
		logger.DebugKV(ctx, "Entry corrupted", "entry", entry.Name, "error", err)
		return StatusMismatch
	}

	if !bytes.Equal(want, got) {
		return StatusMismatch
	}

	return StatusOK
}

// Render writes the report as a table.
func Render(w io.Writer, report *Report) error {
	if w == nil {
		return errNoOutput
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Top: tw.On, Bottom: tw.On, Left: tw.On, Right: tw.On},
		}),
	)

	table.Header("Entry", "Source", "Size", "Compressed", "Status")

	for _, entry := range report.Entries {
		table.Append(
			entry.Name,
			entry.Source,
			humanize.IBytes(entry.Size),
			humanize.IBytes(entry.CompressedSize),
			string(entry.Status),
		)
	}

	return table.Render()
}

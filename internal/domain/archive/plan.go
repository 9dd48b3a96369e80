package archive

// Entry pairs a source file with the name it is stored under in the archive.
type Entry struct {
	// Source is the path of the file on disk.
	Source string
	// Name is the flat archive-internal name.
	Name string
}

// Plan is a fully expanded layout: where the archive goes and what goes in it.
type Plan struct {
	// ArchivePath is the output archive file path.
	ArchivePath string
	// Entries are written in order.
	Entries []Entry
}

// Names returns the archive-internal names in write order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Entries))
	for i, entry := range p.Entries {
		names[i] = entry.Name
	}

	return names
}

// Package archive contains the domain types of a plugin archive.
//
// A Layout is a list of templated entries. Expanding it against concrete
// directories and a base name yields a Plan: the archive path plus the
// ordered (source, name) pairs to write into it.
package archive

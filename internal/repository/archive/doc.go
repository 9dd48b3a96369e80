// Package archive reads and writes plugin archives on disk.
//
// Archives are standard deflate-compressed zip containers with flat entry
// names. Writer streams source files into a container one entry at a time;
// Reader lists and opens the entries of an existing one.
package archive

// Package packager builds a plugin archive (.jpl) from compiled artifacts.
//
// Run removes the previous archive, creates a fresh deflate-compressed
// container next to the project and copies the layout's entries into it in
// order. In atomic mode the container is assembled in memory and swapped
// into place only once it is complete.
package packager

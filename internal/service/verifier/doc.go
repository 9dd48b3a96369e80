// Package verifier checks a built plugin archive against its sources.
//
// It expects exactly the layout's entries, in layout order, each holding the
// byte content of its source file (compared by SHA-512), and renders the
// findings as a table.
package verifier

// Package common holds helpers shared by several services.
//
// It computes SHA-512 checksums of files and streams, and looks up running
// processes by executable name.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

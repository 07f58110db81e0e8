// Package storage defines the small file-system abstraction used for the
// schedule's sidecar files (snapshot cache, favourites list).
package storage

import (
	"io/fs"
)

// Provider reads and writes files relative to a root directory.
type Provider interface {
	// Root returns the absolute directory paths are resolved against.
	Root() string
	// Stat returns file info for path (relative to root).
	Stat(path string) (fs.FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}

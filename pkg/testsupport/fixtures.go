// Package testsupport holds fixture helpers shared by the package tests:
// fixture files, temporary files and seeded SQLite databases.
package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadReader creates an io.Reader from fixture data.
func LoadReader(t testing.TB, path string) io.Reader {
	t.Helper()

	return bytes.NewReader(LoadFixture(t, path))
}

// TempFile writes content to a file named name inside a per test directory
// and returns its path. The directory is removed when the test ends.
func TempFile(t testing.TB, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write temp file %s: %v", path, err)
	}

	return path
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// ModuleFixturePath returns the path of a fixture shipped with this package,
// so tests in other packages can reach it regardless of their working directory.
func ModuleFixturePath(t testing.TB, filename string) string {
	t.Helper()

	dir, err := moduleDir()
	if err != nil {
		t.Fatalf("failed to locate testsupport directory: %v", err)
	}
	return filepath.Join(dir, "testdata", filename)
}

package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// FixturePath returns the path of name inside the testdata directory of the
// package under test.
func FixturePath(name string) string {
	return filepath.Join("testdata", name)
}

// Fixture reads the file at path and fails the test when it cannot.
func Fixture(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "reading fixture %s", path)
	return data
}

// FixtureJSON decodes the JSON file at path into a T. Numbers decode the way
// encoding/json decodes them, so untyped values hold float64.
func FixtureJSON[T any](t testing.TB, path string) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(Fixture(t, path), &out), "decoding fixture %s", path)
	return out
}

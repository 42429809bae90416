package unittest

import (
	"errors"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// RequireErrorAs requires err to be non-nil and to match the given error type
// predicate, e.g. market.IsInvalidBidError.
func RequireErrorAs(t testing.TB, err error, is func(error) bool) {
	require.Error(t, err)
	require.True(t, is(err), "unexpected error type: %v", err)
}

// RequireSentinel requires err to wrap the given sentinel.
func RequireSentinel(t testing.TB, err error, sentinel error) {
	require.Error(t, err)
	require.True(t, errors.Is(err, sentinel), "expected %v, got %v", sentinel, err)
}

func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "lspmarket-testing-temp-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(string)) {
	dbDir := TempDir(t)
	defer os.RemoveAll(dbDir)
	f(dbDir)
}

func BadgerDB(t testing.TB, dir string) *badger.DB {
	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}

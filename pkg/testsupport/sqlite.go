package testsupport

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/goliatone/go-repository-pager/pkg/seed"
	"github.com/goliatone/go-repository-pager/store"
	"github.com/shopspring/decimal"
)

// UsersCSV is the name of the user fixture in testdata.
const UsersCSV = "users.csv"

// UsersTable is the table seeded by the helpers below.
const UsersTable = "user_data"

// UserID returns a valid UUID that sorts by n.
func UserID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

// Users builds n users with ids ordered by position and ages 20 to 69.
func Users(n int) []seed.User {
	users := make([]seed.User, 0, n)
	for i := 1; i <= n; i++ {
		users = append(users, seed.User{
			UserID: UserID(i),
			Name:   fmt.Sprintf("User %03d", i),
			Email:  fmt.Sprintf("user%03d@example.com", i),
			Age:    decimal.NewFromInt(int64(20 + (i-1)%50)),
		})
	}
	return users
}

// SQLiteConn returns a connection config for a fresh database file inside a
// per test directory.
func SQLiteConn(t testing.TB, driver string) store.ConnConfig {
	t.Helper()
	return store.ConnConfig{Driver: driver, Path: filepath.Join(t.TempDir(), "users.db")}
}

// SQLiteUsers creates a SQLite database file, seeds users into user_data and
// returns the connection config. The seeding connection is closed before
// returning so stores open their own.
func SQLiteUsers(t testing.TB, driver string, users []seed.User) store.ConnConfig {
	t.Helper()

	cfg := SQLiteConn(t, driver)
	withSeeder(t, cfg, func(ctx context.Context, s *seed.Seeder) error {
		if err := s.CreateTable(ctx); err != nil {
			return err
		}
		return s.Insert(ctx, users)
	})
	return cfg
}

// SQLiteUsersCSV seeds a SQLite database from the CSV fixture at path and
// returns the connection config with the number of rows written.
func SQLiteUsersCSV(t testing.TB, driver, path string) (store.ConnConfig, int) {
	t.Helper()

	cfg := SQLiteConn(t, driver)
	var n int
	withSeeder(t, cfg, func(ctx context.Context, s *seed.Seeder) error {
		var err error
		n, err = s.SeedCSV(ctx, LoadReader(t, path))
		return err
	})
	return cfg, n
}

// UsersSource is the SQLStore config reading user_data ordered by user_id.
func UsersSource(conn store.ConnConfig) store.SQLConfig {
	return store.SQLConfig{Conn: conn, Table: UsersTable, PrimaryKey: "user_id"}
}

func withSeeder(t testing.TB, cfg store.ConnConfig, fn func(context.Context, *seed.Seeder) error) {
	t.Helper()

	ctx := context.Background()
	db, err := seed.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to open %s: %v", cfg, err)
	}
	defer db.Close()

	if err := fn(ctx, seed.New(db)); err != nil {
		t.Fatalf("failed to seed %s: %v", cfg, err)
	}
}

func moduleDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("runtime caller unavailable")
	}
	return filepath.Dir(file), nil
}

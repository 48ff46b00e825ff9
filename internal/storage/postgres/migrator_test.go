package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func migrationFiles(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[migrationsDir+"/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestLoadMigrationsFromFS(t *testing.T) {
	t.Parallel()

	all, err := loadMigrationsFromFS(migrationFiles(map[string]string{
		"0002_carts.up.sql":   "CREATE TABLE carts (id TEXT);",
		"0002_carts.down.sql": "DROP TABLE carts;",
		"0001_users.up.sql":   "CREATE TABLE users (id TEXT);",
		"0001_users.down.sql": "DROP TABLE users;",
	}))
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "0001_users", all[0].String())
	require.Equal(t, "DROP TABLE carts;", all[1].script(migrationDown))
	require.Equal(t, "CREATE TABLE carts (id TEXT);", all[1].script(migrationUp))
}

func TestLoadMigrationsFromFS_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		files   map[string]string
		message string
	}{
		"missing down":  {map[string]string{"0001_users.up.sql": "SELECT 1;"}, "both up and down"},
		"bad name":      {map[string]string{"users.sql": "SELECT 1;"}, "invalid migration file name"},
		"empty body":    {map[string]string{"0001_users.up.sql": "  \n", "0001_users.down.sql": "SELECT 1;"}, "is empty"},
		"name conflict": {map[string]string{"0001_users.up.sql": "SELECT 1;", "0001_people.down.sql": "SELECT 1;"}, "conflicting names"},
		"no files":      {map[string]string{}, migrationsDir},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(migrationFiles(tc.files))
			require.ErrorContains(t, err, tc.message)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	all, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, m := range all {
		require.Equal(t, int64(i+1), m.Version)
	}
}

func TestPlanMigrations(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}
	versions := func(plan []migration) []int64 {
		out := make([]int64, 0, len(plan))
		for _, m := range plan {
			out = append(out, m.Version)
		}
		return out
	}

	plan, err := planMigrations(all, []int64{1}, migrationUp, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, versions(plan))

	plan, err = planMigrations(all, nil, migrationUp, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, versions(plan))

	plan, err = planMigrations(all, []int64{1, 2, 3}, migrationDown, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2}, versions(plan))

	plan, err = planMigrations(all, nil, migrationDown, 1)
	require.NoError(t, err)
	require.Empty(t, plan)

	_, err = planMigrations(all, []int64{1, 9}, migrationDown, 1)
	require.ErrorContains(t, err, "version 9")
}

func TestCountPending(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1}, {Version: 2}, {Version: 3}}
	require.Equal(t, 2, countPending(all, []int64{1}))
	require.Equal(t, 0, countPending(all, []int64{1, 2, 3}))
	require.Equal(t, 3, countPending(all, nil))
}

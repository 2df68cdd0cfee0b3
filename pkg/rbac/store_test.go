package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertAndFetch(t *testing.T) {
	store, _ := OpenTestStore(t)
	ctx := context.Background()

	for _, row := range testRows() {
		require.NoError(t, store.UpsertGroupRole(ctx, row))
	}

	rows, err := store.FetchGroupRoles(ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(testRows()))

	byID := map[string]RawGroupRole{}
	for _, row := range rows {
		byID[row.GroupID] = row
	}
	assert.Equal(t, RawGroupRole{Title: "Tech POS", GroupID: gTechPOS, GroupType: "department", Department: "Tech", ProblemTypeSub: "POS", IsActive: true}, byID[gTechPOS])
	assert.Equal(t, RawGroupRole{Title: "Admins", GroupID: gAdmin, GroupType: "admin", IsActive: true}, byID[gAdmin])
	assert.False(t, byID[gInactive].IsActive)

	// Replaces the row with the same group id
	require.NoError(t, store.UpsertGroupRole(ctx, RawGroupRole{Title: "Tech Support", GroupID: gTech, GroupType: "department", Department: "Tech", IsActive: true}))
	rows, err = store.FetchGroupRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, len(testRows()))
}

func TestStore_UpsertRejectsInvalidRows(t *testing.T) {
	store, _ := OpenTestStore(t)

	err := store.UpsertGroupRole(context.Background(), RawGroupRole{Title: "x", GroupID: "g", GroupType: "owner"})
	assert.Error(t, err)
}

func TestStore_SetActiveAndDelete(t *testing.T) {
	store, _ := OpenTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertGroupRole(ctx, RawGroupRole{Title: "Tech", GroupID: gTech, GroupType: "department", Department: "Tech", IsActive: true}))

	require.NoError(t, store.SetActive(ctx, gTech, false))
	rows, err := store.FetchGroupRoles(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsActive)

	err = store.SetActive(ctx, "missing", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, store.DeleteGroupRole(ctx, gTech))
	rows, err = store.FetchGroupRoles(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_AsConfigSource(t *testing.T) {
	store, _ := OpenTestStore(t)
	ctx := context.Background()

	for _, row := range testRows() {
		require.NoError(t, store.UpsertGroupRole(ctx, row))
	}

	loader := NewConfigLoader(store, time.Minute, nil, nil)
	cfg := loader.Load(ctx)

	expected := testConfig()
	expected.LoadedAt = cfg.LoadedAt
	assert.Equal(t, expected, cfg)
}

func TestSeedFallbackRoles(t *testing.T) {
	store, _ := OpenTestStore(t)
	ctx := context.Background()

	require.NoError(t, SeedFallbackRoles(ctx, store))
	require.NoError(t, SeedFallbackRoles(ctx, store), "seeding twice is a no-op")

	rows, err := store.FetchGroupRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, len(FallbackGroupRoles()))

	cfg := NewConfigLoader(store, time.Minute, nil, nil).Load(ctx)
	fallback := FallbackConfig(cfg.LoadedAt)
	fallback.Source = SourceRemote
	assert.Equal(t, fallback, cfg, "seeded table is equivalent to the fallback")
}

func TestRunMigrations_Idempotent(t *testing.T) {
	_, db := OpenTestStore(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db, nil))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rbac_migrations").Scan(&count))
	assert.Equal(t, len(GetMigrations()), count)
}

func TestStore_QueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT title, group_id").WillReturnError(errors.New("relation does not exist"))
	_, err = store.FetchGroupRoles(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query group roles")

	mock.ExpectQuery("SELECT title, group_id").WillReturnRows(
		sqlmock.NewRows([]string{"title", "group_id", "group_type", "department", "problem_type_sub", "is_active"}).
			AddRow("Tech", gTech, "department", "Tech", nil, true).
			RowError(0, errors.New("connection reset")),
	)
	_, err = store.FetchGroupRoles(ctx)
	require.Error(t, err)

	mock.ExpectExec("UPDATE rbac_group_roles").WillReturnResult(sqlmock.NewResult(0, 0))
	err = store.SetActive(ctx, gTech, true)
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigLoader_FallsBackWhenStoreFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT title, group_id").WillReturnError(errors.New("connection refused"))

	loader := NewConfigLoader(NewStore(db), time.Minute, nil, nil)
	cfg := loader.Load(context.Background())

	assert.Equal(t, SourceFallback, cfg.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Postgres(t *testing.T) {
	db := RequireDatabase(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db, nil))
	store := NewStore(db)
	t.Cleanup(func() {
		for _, row := range testRows() {
			_ = store.DeleteGroupRole(context.Background(), row.GroupID)
		}
	})

	for _, row := range testRows() {
		require.NoError(t, store.UpsertGroupRole(ctx, row))
	}
	require.NoError(t, store.SetActive(ctx, gTech, false))

	cfg := NewConfigLoader(store, time.Minute, nil, nil).Load(ctx)
	assert.Equal(t, SourceRemote, cfg.Source)
	assert.False(t, cfg.AllowedGroupIDs.Has(gTech))
	assert.True(t, cfg.AdminGroupIDs.Has(gAdmin))
}

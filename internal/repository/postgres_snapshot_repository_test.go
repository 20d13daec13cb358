package repository

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"
	"time"

	"wtb-catalog/internal/database"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(db, zap.NewNop()); err != nil {
		db.Close()
		return dbContainer.Terminate, err
	}

	testDB = db
	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	// Docker is optional; postgres tests skip without it
	teardown, err := setupTestDB()
	if err != nil {
		log.Printf("postgres container unavailable, skipping postgres tests: %v", err)
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Printf("could not teardown postgres container: %v", err)
		}
	}
	os.Exit(code)
}

func requireTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container not available")
	}
	return testDB
}

func TestMigrationVersion(t *testing.T) {
	db := requireTestDB(t)

	version, err := database.MigrationVersion(db)
	require.NoError(t, err)
	require.Equal(t, int64(2), version)
}

func TestPostgresSnapshotRepository_NotFound(t *testing.T) {
	db := requireTestDB(t)
	repo := NewPostgresSnapshotRepository(db, "missing")

	_, err := repo.Read(context.Background())
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestPostgresSnapshotRepository_UpsertReplacesDocument(t *testing.T) {
	db := requireTestDB(t)
	repo := NewPostgresSnapshotRepository(db, "upsert")
	ctx := context.Background()

	require.NoError(t, repo.Write(ctx, []byte(`{"products_with_sku": 1}`)))
	require.NoError(t, repo.Write(ctx, []byte(`{"products_with_sku": 2}`)))

	data, err := repo.Read(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `{"products_with_sku": 2}`, string(data))

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM catalog_snapshots WHERE name = $1`, "upsert").Scan(&rows))
	require.Equal(t, 1, rows)
	require.Equal(t, "postgres:upsert", repo.Describe())
}

func TestPostgresSnapshotRepository_RejectsInvalidJSON(t *testing.T) {
	db := requireTestDB(t)
	repo := NewPostgresSnapshotRepository(db, "invalid")

	require.Error(t, repo.Write(context.Background(), []byte(`{"broken"`)))
}

// Feature: wtb-catalog, Property 5: Snapshots are isolated by name
func TestProperty_SnapshotsAreIsolatedByName(t *testing.T) {
	db := requireTestDB(t)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("reading a name returns the last document written under it", prop.ForAll(
		func(name string, other string, count int) bool {
			if name == other {
				return true
			}
			repo := NewPostgresSnapshotRepository(db, name)
			otherRepo := NewPostgresSnapshotRepository(db, other)

			if err := otherRepo.Write(ctx, []byte(`{"owner":"other"}`)); err != nil {
				t.Logf("Failed to write: %v", err)
				return false
			}
			if err := repo.Write(ctx, []byte(`{"total_products":`+itoa(count)+`}`)); err != nil {
				t.Logf("Failed to write: %v", err)
				return false
			}

			data, err := repo.Read(ctx)
			if err != nil {
				return false
			}
			otherData, err := otherRepo.Read(ctx)
			if err != nil {
				return false
			}
			return jsonEqual(data, `{"total_products":`+itoa(count)+`}`) && jsonEqual(otherData, `{"owner":"other"}`)
		},
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

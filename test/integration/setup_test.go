//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/resolution"
	"github.com/ehr/surgichart/internal/domain/surgery"
	"github.com/ehr/surgichart/internal/platform/db"
	"github.com/ehr/surgichart/migrations"
)

var testPool *pgxpool.Pool

// TestMain uses INTEGRATION_DATABASE_URL when set, otherwise a throwaway
// container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := db.NewPool(ctx, connStr, db.PoolOptions{MaxConns: 8, MinConns: 1, ApplicationName: "surgichart-integration"})
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	testPool = pool

	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// freshSchema migrates a new schema and points every pooled connection's
// search_path at it for the duration of the test.
func freshSchema(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	schema := "it_" + uuid.NewString()[:8]

	if _, err := db.NewMigrator(testPool, migrations.FS).Up(ctx, schema); err != nil {
		t.Fatalf("migrate %s: %v", schema, err)
	}

	cfg := testPool.Config().Copy()
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("schema pool: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		quoted := pgx.Identifier{schema}.Sanitize()
		if _, err := testPool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+quoted+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	})
	return pool
}

type stack struct {
	patients   identity.PatientRepository
	procedures procedure.Repository
	surgeries  surgery.Repository
	holds      *resolution.PGHoldStore
	orch       *resolution.Orchestrator
}

func newStack(t *testing.T) *stack {
	pool := freshSchema(t)
	s := &stack{
		patients:   identity.NewPatientRepo(pool),
		procedures: procedure.NewRepo(pool),
		surgeries:  surgery.NewRepo(pool),
		holds:      resolution.NewPGHoldStore(pool),
	}
	store := resolution.NewRepoStore(s.patients, s.procedures, s.surgeries)
	s.orch = resolution.NewOrchestrator(store, resolution.DefaultMatchConfig(), zerolog.Nop(), resolution.WithHoldStore(s.holds))
	return s
}

func submission(name, birth, card string) resolution.Submission {
	return resolution.Submission{
		Patient: resolution.PatientInput{FullName: name, BirthDate: birth, HealthCardNumber: card},
		Procedure: procedure.Procedure{
			ProcedureName:  "Laparoscopic cholecystectomy",
			AnesthesiaType: "general",
		},
	}
}

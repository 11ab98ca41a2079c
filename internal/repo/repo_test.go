package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"safeline/internal/db"
	"safeline/internal/domain"
	"safeline/internal/migrate"
	"safeline/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func inTx(t *testing.T, r repo.Repo, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := r.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		t.Fatalf("tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func seedObservation(t *testing.T, r repo.Repo, id string) domain.Observation {
	t.Helper()
	o := domain.Observation{
		ID:              id,
		ReportNumber:    "BSO-2025-" + id,
		ObservationType: domain.TypeUnsafeCondition,
		Severity:        domain.SeverityLow,
		Status:          domain.StatusOpen,
		Description:     "loose cable tray",
		Observer:        "worker-1",
		CompanyID:       "acme",
		PlantID:         "plant-a",
		CreatedAt:       "2025-03-10T12:00:00Z",
		UpdatedAt:       "2025-03-10T12:00:00Z",
		Version:         1,
	}
	inTx(t, r, func(tx *sql.Tx) error {
		return r.InsertObservationTx(context.Background(), tx, o)
	})
	return o
}

func TestUpdateObservationVersionConflict(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	o := seedObservation(t, r, "obs-1")

	o.Severity = domain.SeverityHigh
	inTx(t, r, func(tx *sql.Tx) error {
		return r.UpdateObservationTx(ctx, tx, o, 1)
	})

	got, err := r.GetObservation(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}
	if got.Severity != domain.SeverityHigh {
		t.Fatalf("severity = %q, want high", got.Severity)
	}

	// A second write against the stale version must lose.
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	err = r.UpdateObservationTx(ctx, tx, o, 1)
	if !errors.Is(err, repo.ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}
}

func TestNextReportNumberPerYear(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	var nums []string
	inTx(t, r, func(tx *sql.Tx) error {
		for _, year := range []string{"2025", "2025", "2026", "2025"} {
			n, err := r.NextReportNumber(ctx, tx, year)
			if err != nil {
				return err
			}
			nums = append(nums, n)
		}
		return nil
	})

	want := []string{"BSO-2025-00001", "BSO-2025-00002", "BSO-2026-00001", "BSO-2025-00003"}
	for i, w := range want {
		if nums[i] != w {
			t.Fatalf("nums[%d] = %q, want %q", i, nums[i], w)
		}
	}
}

func TestAPIKeyLookupByHash(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.UpsertActor(ctx, domain.Actor{
		ID: "safety-1", Role: domain.RoleSafetyIncharge, CompanyID: "acme", PlantID: "plant-a",
	}); err != nil {
		t.Fatalf("seed actor: %v", err)
	}

	secret := "slk_deadbeef"
	err := r.InsertAPIKey(ctx, domain.APIKey{
		ID:      "key-1",
		ActorID: "safety-1",
		Name:    "ci",
		KeyHash: repo.HashAPIKey(secret),
	})
	if err != nil {
		t.Fatalf("insert key: %v", err)
	}

	key, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(" "+secret+" "))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if key.ActorID != "safety-1" {
		t.Fatalf("actor = %q, want safety-1", key.ActorID)
	}

	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("slk_wrong")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("wrong key err = %v, want ErrNotFound", err)
	}

	if err := r.DeleteAPIKey(ctx, "key-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(secret)); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestCorruptEvidencePhotosSurfaceAsError(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	o := seedObservation(t, r, "obs-1")
	_, err := r.DB.ExecContext(ctx, `INSERT INTO corrective_actions(
id, observation_id, seq, action, assigned_to, priority, status, evidence_photos_json, created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		"act-1", o.ID, 0, "replace bracket", "worker-2", "medium", "completed", "{not json", o.CreatedAt)
	if err != nil {
		t.Fatalf("seed action: %v", err)
	}
	if _, err := r.GetObservation(ctx, o.ID); err == nil {
		t.Fatal("expected error for corrupt evidence photos")
	}
}

func TestCountObservationsByStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedObservation(t, r, "obs-1")
	seedObservation(t, r, "obs-2")
	o := seedObservation(t, r, "obs-3")
	o.Status = domain.StatusClosed
	inTx(t, r, func(tx *sql.Tx) error {
		return r.UpdateObservationTx(ctx, tx, o, 1)
	})

	counts, err := r.CountObservationsByStatus(ctx, "acme")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["open"] != 2 || counts["closed"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

package repo

import (
	"context"
	"database/sql"
	"errors"

	"safeline/internal/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertActor registers or updates a directory entry. The directory is the
// identity/role lookup the guard's callers resolve actors through.
func (r Repo) UpsertActor(ctx context.Context, a domain.Actor) error {
	return upsertActor(ctx, r.DB, a)
}

// UpsertActorTx is UpsertActor inside the caller's transaction, so the
// registration and its event commit together.
func (r Repo) UpsertActorTx(ctx context.Context, tx *sql.Tx, a domain.Actor) error {
	return upsertActor(ctx, tx, a)
}

func upsertActor(ctx context.Context, db execer, a domain.Actor) error {
	if a.ID == "" {
		return errors.New("actor id required")
	}
	if !a.Role.Valid() {
		return errors.New("unknown role " + string(a.Role))
	}
	_, err := db.ExecContext(ctx, `INSERT INTO actors(id, name, role, company_id, plant_id, created_at)
VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, role=excluded.role,
company_id=excluded.company_id, plant_id=excluded.plant_id`,
		a.ID, nullable(a.Name), a.Role, a.CompanyID, nullable(a.PlantID), a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, COALESCE(name,''), role, company_id, COALESCE(plant_id,''), created_at FROM actors WHERE id=?`, id)
	var a domain.Actor
	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.CompanyID, &a.PlantID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListActors(ctx context.Context, role string) ([]domain.Actor, error) {
	query := `SELECT id, COALESCE(name,''), role, company_id, COALESCE(plant_id,''), created_at FROM actors`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actors []domain.Actor
	for rows.Next() {
		var a domain.Actor
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.CompanyID, &a.PlantID, &a.CreatedAt); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

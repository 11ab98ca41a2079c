package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"safeline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict signals a lost optimistic-concurrency race on an
	// observation; the caller may reload and retry.
	ErrVersionConflict = errors.New("version conflict")
)

const observationColumns = `id, report_number, observation_type, severity, status,
COALESCE(description,''), observer, company_id, plant_id, COALESCE(area_id,''),
reviewed_by, reviewed_at, review_decision, review_comments, reassign_reason,
closure_decided_by, closure_decided_at, closure_decision, closure_comments,
created_at, updated_at, completed_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (domain.Observation, error) {
	var (
		o                                                 domain.Observation
		reviewedBy, reviewedAt, reviewDecision            sql.NullString
		reviewComments, reassignReason                    sql.NullString
		closedBy, closedAt, closureDecision, closureNotes sql.NullString
		completedAt                                       sql.NullString
	)
	err := row.Scan(&o.ID, &o.ReportNumber, &o.ObservationType, &o.Severity, &o.Status,
		&o.Description, &o.Observer, &o.CompanyID, &o.PlantID, &o.AreaID,
		&reviewedBy, &reviewedAt, &reviewDecision, &reviewComments, &reassignReason,
		&closedBy, &closedAt, &closureDecision, &closureNotes,
		&o.CreatedAt, &o.UpdatedAt, &completedAt, &o.Version)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if reviewDecision.Valid {
		o.Review = &domain.Review{
			ReviewedBy:     reviewedBy.String,
			ReviewedAt:     reviewedAt.String,
			Decision:       reviewDecision.String,
			Comments:       reviewComments.String,
			ReassignReason: reassignReason.String,
		}
	}
	if closureDecision.Valid {
		o.Closure = &domain.Closure{
			DecidedBy: closedBy.String,
			DecidedAt: closedAt.String,
			Decision:  closureDecision.String,
			Comments:  closureNotes.String,
		}
	}
	if completedAt.Valid {
		o.CompletedAt = &completedAt.String
	}
	return o, nil
}

func (r Repo) InsertObservationTx(ctx context.Context, tx *sql.Tx, o domain.Observation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO observations(
id, report_number, observation_type, severity, status, description, observer,
company_id, plant_id, area_id, created_at, updated_at, version)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.ReportNumber, o.ObservationType, o.Severity, o.Status, nullable(o.Description),
		o.Observer, o.CompanyID, o.PlantID, nullable(o.AreaID), o.CreatedAt, o.UpdatedAt, o.Version)
	return err
}

// UpdateObservationTx writes the full aggregate back with an optimistic
// version check. The caller passes the version it loaded; a zero-row update
// means another writer got there first.
func (r Repo) UpdateObservationTx(ctx context.Context, tx *sql.Tx, o domain.Observation, loadedVersion int64) error {
	var (
		reviewedBy, reviewedAt, reviewDecision, reviewComments, reassignReason any
		closedBy, closedAt, closureDecision, closureComments                   any
		completedAt                                                            any
	)
	if o.Review != nil {
		reviewedBy = o.Review.ReviewedBy
		reviewedAt = o.Review.ReviewedAt
		reviewDecision = o.Review.Decision
		reviewComments = nullable(o.Review.Comments)
		reassignReason = nullable(o.Review.ReassignReason)
	}
	if o.Closure != nil {
		closedBy = o.Closure.DecidedBy
		closedAt = o.Closure.DecidedAt
		closureDecision = o.Closure.Decision
		closureComments = nullable(o.Closure.Comments)
	}
	if o.CompletedAt != nil {
		completedAt = *o.CompletedAt
	}
	res, err := tx.ExecContext(ctx, `UPDATE observations SET
severity=?, status=?, description=?, area_id=?,
reviewed_by=?, reviewed_at=?, review_decision=?, review_comments=?, reassign_reason=?,
closure_decided_by=?, closure_decided_at=?, closure_decision=?, closure_comments=?,
updated_at=?, completed_at=?, version=version+1
WHERE id=? AND version=?`,
		o.Severity, o.Status, nullable(o.Description), nullable(o.AreaID),
		reviewedBy, reviewedAt, reviewDecision, reviewComments, reassignReason,
		closedBy, closedAt, closureDecision, closureComments,
		o.UpdatedAt, completedAt, o.ID, loadedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return r.syncActionsTx(ctx, tx, o)
}

// syncActionsTx upserts the aggregate's corrective actions, preserving
// assignment order via the seq column.
func (r Repo) syncActionsTx(ctx context.Context, tx *sql.Tx, o domain.Observation) error {
	for i, act := range o.CorrectiveActions {
		photos, err := marshalStringSlice(act.EvidencePhotos)
		if err != nil {
			return err
		}
		var rating any
		if act.EffectivenessRating != nil {
			rating = *act.EffectivenessRating
		}
		var completed any
		if act.CompletedDate != nil {
			completed = *act.CompletedDate
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO corrective_actions(
id, observation_id, seq, action, assigned_to, due_date, priority, status,
completion_evidence, effectiveness_rating, evidence_photos_json, created_at, completed_date)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
status=excluded.status,
completion_evidence=excluded.completion_evidence,
effectiveness_rating=excluded.effectiveness_rating,
evidence_photos_json=excluded.evidence_photos_json,
completed_date=excluded.completed_date`,
			act.ID, o.ID, i, act.Action, act.AssignedTo, nullable(act.DueDate), act.Priority,
			act.Status, nullable(act.CompletionEvidence), rating, photos, act.CreatedAt, completed)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetObservation(ctx context.Context, id string) (domain.Observation, error) {
	o, err := scanObservation(r.DB.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE id=?`, id))
	if err != nil {
		return o, err
	}
	o.CorrectiveActions, err = r.listActions(ctx, r.DB.QueryContext, id)
	return o, err
}

// GetObservationTx loads the aggregate inside a transaction so guard
// evaluation and mutation observe one consistent snapshot.
func (r Repo) GetObservationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Observation, error) {
	o, err := scanObservation(tx.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE id=?`, id))
	if err != nil {
		return o, err
	}
	o.CorrectiveActions, err = r.listActions(ctx, tx.QueryContext, id)
	return o, err
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r Repo) listActions(ctx context.Context, query queryFunc, observationID string) ([]domain.CorrectiveAction, error) {
	rows, err := query(ctx, `SELECT id, observation_id, action, assigned_to,
COALESCE(due_date,''), priority, status, COALESCE(completion_evidence,''),
effectiveness_rating, evidence_photos_json, created_at, completed_date
FROM corrective_actions WHERE observation_id=? ORDER BY seq`, observationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actions []domain.CorrectiveAction
	for rows.Next() {
		var (
			act       domain.CorrectiveAction
			rating    sql.NullInt64
			photos    sql.NullString
			completed sql.NullString
		)
		if err := rows.Scan(&act.ID, &act.ObservationID, &act.Action, &act.AssignedTo,
			&act.DueDate, &act.Priority, &act.Status, &act.CompletionEvidence,
			&rating, &photos, &act.CreatedAt, &completed); err != nil {
			return nil, err
		}
		if rating.Valid {
			v := int(rating.Int64)
			act.EffectivenessRating = &v
		}
		if photos.Valid && photos.String != "" {
			if err := json.Unmarshal([]byte(photos.String), &act.EvidencePhotos); err != nil {
				return nil, fmt.Errorf("action %s evidence photos: %w", act.ID, err)
			}
		}
		if completed.Valid {
			act.CompletedDate = &completed.String
		}
		actions = append(actions, act)
	}
	return actions, rows.Err()
}

// ObservationFilters narrow ListObservations. Zero values mean "any".
type ObservationFilters struct {
	Status          string
	PlantID         string
	CompanyID       string
	Observer        string
	Type            string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListObservations(ctx context.Context, f ObservationFilters) ([]domain.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations`
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "status=?")
		args = append(args, f.Status)
	}
	if f.PlantID != "" {
		conds = append(conds, "plant_id=?")
		args = append(args, f.PlantID)
	}
	if f.CompanyID != "" {
		conds = append(conds, "company_id=?")
		args = append(args, f.CompanyID)
	}
	if f.Observer != "" {
		conds = append(conds, "observer=?")
		args = append(args, f.Observer)
	}
	if f.Type != "" {
		conds = append(conds, "observation_type=?")
		args = append(args, f.Type)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		conds = append(conds, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].CorrectiveActions, err = r.listActions(ctx, r.DB.QueryContext, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// NextReportNumber hands out the next sequence for the year inside the
// caller's transaction, so concurrent creations never collide.
func (r Repo) NextReportNumber(ctx context.Context, tx *sql.Tx, year string) (string, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO report_sequences(year, next) VALUES (?, 1) ON CONFLICT(year) DO NOTHING`, year); err != nil {
		return "", err
	}
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE report_sequences SET next=next+1 WHERE year=? RETURNING next-1`, year).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("BSO-%s-%05d", year, seq), nil
}

func (r Repo) CountObservationsByStatus(ctx context.Context, companyID string) (map[string]int, error) {
	query := `SELECT status, COUNT(1) FROM observations`
	var args []any
	if companyID != "" {
		query += ` WHERE company_id=?`
		args = append(args, companyID)
	}
	query += ` GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func marshalStringSlice(in []string) (any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

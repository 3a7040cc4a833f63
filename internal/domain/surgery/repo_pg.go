package surgery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const surgeryCols = `id, patient_id, procedure_id, surgery_name, surgeon, operating_room, laterality,
	started_at, ended_at, status, created_at`

func (r *repoPG) Create(ctx context.Context, s *Surgery) error {
	s.ID = uuid.New()
	if s.Status == "" {
		s.Status = "scheduled"
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO surgery (
			id, patient_id, procedure_id, surgery_name, surgeon, operating_room, laterality,
			started_at, ended_at, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		s.ID, s.PatientID, s.ProcedureID, s.SurgeryName, s.Surgeon, s.OperatingRoom, s.Laterality,
		s.StartedAt, s.EndedAt, s.Status,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("surgery create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	s, err := scanSurgery(r.pool.QueryRow(ctx, `SELECT `+surgeryCols+` FROM surgery WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSurgeryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("surgery get by id: %w", err)
	}
	return s, nil
}

func (r *repoPG) ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*Surgery, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+surgeryCols+` FROM surgery WHERE procedure_id = $1 ORDER BY created_at`, procedureID)
	if err != nil {
		return nil, fmt.Errorf("surgery list by procedure: %w", err)
	}
	defer rows.Close()

	var items []*Surgery
	for rows.Next() {
		s, err := scanSurgery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func scanSurgery(row pgx.Row) (*Surgery, error) {
	var s Surgery
	err := row.Scan(&s.ID, &s.PatientID, &s.ProcedureID, &s.SurgeryName, &s.Surgeon, &s.OperatingRoom, &s.Laterality,
		&s.StartedAt, &s.EndedAt, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

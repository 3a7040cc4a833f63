package procedure

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

const procedureCols = `id, patient_id, procedure_name, anesthesia_type, asa_class, anesthesiologist,
	scheduled_at, status, note, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Procedure) error {
	p.ID = uuid.New()
	if p.Status == "" {
		p.Status = "scheduled"
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO anesthesia_procedure (
			id, patient_id, procedure_name, anesthesia_type, asa_class, anesthesiologist,
			scheduled_at, status, note
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.ProcedureName, p.AnesthesiaType, p.ASAClass, p.Anesthesiologist,
		p.ScheduledAt, p.Status, p.Note,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("procedure create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Procedure, error) {
	p, err := scanProcedure(r.pool.QueryRow(ctx, `SELECT `+procedureCols+` FROM anesthesia_procedure WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProcedureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("procedure get by id: %w", err)
	}
	return p, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Procedure, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM anesthesia_procedure WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+procedureCols+` FROM anesthesia_procedure
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Procedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func scanProcedure(row pgx.Row) (*Procedure, error) {
	var p Procedure
	err := row.Scan(&p.ID, &p.PatientID, &p.ProcedureName, &p.AnesthesiaType, &p.ASAClass, &p.Anesthesiologist,
		&p.ScheduledAt, &p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

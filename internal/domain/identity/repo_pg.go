package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn() querier {
	return r.pool
}

const patientCols = `id, full_name, birth_date, sex, health_card_number, name_tokens,
	phone, email, address_line, city, state, postal_code, mother_name,
	version_id, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.VersionID = 1
	err := r.conn().QueryRow(ctx, `
		INSERT INTO patient (
			id, full_name, birth_date, sex, health_card_number, name_tokens,
			phone, email, address_line, city, state, postal_code, mother_name, version_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.FullName, p.BirthDate, p.Sex, p.HealthCardNumber, p.NameTokens,
		p.Phone, p.Email, p.AddressLine, p.City, p.State, p.PostalCode, p.MotherName, p.VersionID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn().QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient get by id: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn().QueryRow(ctx, `
		UPDATE patient SET
			full_name=$2, birth_date=$3, sex=$4, health_card_number=$5, name_tokens=$6,
			phone=$7, email=$8, address_line=$9, city=$10, state=$11, postal_code=$12, mother_name=$13,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1
		RETURNING version_id, updated_at`,
		p.ID, p.FullName, p.BirthDate, p.Sex, p.HealthCardNumber, p.NameTokens,
		p.Phone, p.Email, p.AddressLine, p.City, p.State, p.PostalCode, p.MotherName,
	).Scan(&p.VersionID, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("patient update: %w", err)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn().QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn().Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY full_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	patients, err := collectPatients(rows)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *patientRepoPG) FindByHealthCardNumber(ctx context.Context, number string) ([]*Patient, error) {
	rows, err := r.conn().Query(ctx, `SELECT `+patientCols+` FROM patient WHERE health_card_number = $1 ORDER BY created_at`, number)
	if err != nil {
		return nil, fmt.Errorf("patient find by health card: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (r *patientRepoPG) FindByBirthDate(ctx context.Context, birthDate time.Time, nameTokens []string, limit int) ([]*Patient, error) {
	if nameTokens == nil {
		nameTokens = []string{}
	}
	rows, err := r.conn().Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE birth_date = $1
		ORDER BY (name_tokens && $2::text[]) DESC, created_at
		LIMIT $3`, birthDate, nameTokens, limit)
	if err != nil {
		return nil, fmt.Errorf("patient find by birth date: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows)
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.FullName, &p.BirthDate, &p.Sex, &p.HealthCardNumber, &p.NameTokens,
		&p.Phone, &p.Email, &p.AddressLine, &p.City, &p.State, &p.PostalCode, &p.MotherName,
		&p.VersionID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.BirthDate = p.BirthDate.UTC()
	return &p, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

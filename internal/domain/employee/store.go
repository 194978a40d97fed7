package employee

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"erp/internal/platform/db"
)

var ErrNotFound = errors.New("employee not found")

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) q(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, s.Pool)
}

func (s *Store) ListActive(ctx context.Context) ([]Employee, error) {
	rows, err := s.q(ctx).Query(ctx, `
    SELECT id, name, basic_salary, pf_applicable, esic_applicable, pt_applicable, is_active, created_at
    FROM employees
    WHERE is_active = TRUE
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.BasicSalary, &emp.PFApplicable, &emp.ESICApplicable, &emp.PTApplicable, &emp.IsActive, &emp.CreatedAt); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Employee, error) {
	var emp Employee
	err := s.q(ctx).QueryRow(ctx, `
    SELECT id, name, basic_salary, pf_applicable, esic_applicable, pt_applicable, is_active, created_at
    FROM employees
    WHERE id = $1
  `, id).Scan(&emp.ID, &emp.Name, &emp.BasicSalary, &emp.PFApplicable, &emp.ESICApplicable, &emp.PTApplicable, &emp.IsActive, &emp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return emp, err
}

package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"erp/internal/platform/config"
)

type seedEmployee struct {
	name   string
	salary float64
	pf     bool
	esic   bool
	pt     bool
}

// Seed inserts a small factory floor's worth of employees into an empty
// directory so a development instance can run payroll immediately.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if !cfg.RunSeed {
		return nil
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM employees").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	employees := []seedEmployee{
		{"Ramesh Pawar", 12000, true, true, true},
		{"Sunita Gaikwad", 9500, true, true, false},
		{"Abdul Sheikh", 18000, true, false, true},
		{"Meena Jadhav", 7800, false, true, false},
		{"Vikram Chavan", 25000, true, false, true},
	}
	for _, emp := range employees {
		if _, err := pool.Exec(ctx, `
      INSERT INTO employees (name, basic_salary, pf_applicable, esic_applicable, pt_applicable, is_active)
      VALUES ($1,$2,$3,$4,$5,TRUE)
    `, emp.name, emp.salary, emp.pf, emp.esic, emp.pt); err != nil {
			return err
		}
	}
	return nil
}

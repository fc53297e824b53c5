package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/trinity-shop/trinity-platform/internal/config"
)

type Repository struct {
	DB *sql.DB

	User    UserRepository
	Product ProductRepository
	Cart    CartRepository
	Coupon  CouponRepository
	Invoice InvoiceRepository
}

func New(cfg *config.Config) (*Repository, error) {
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Repository{
		DB:      db,
		User:    NewUserRepo(db),
		Product: NewProductRepo(db),
		Cart:    NewCartRepo(db),
		Coupon:  NewCouponRepo(db),
		Invoice: NewInvoiceRepo(db),
	}, nil
}

// Migrate applies the pending SQL migrations from cfg.Database.MigrationsPath.
func (r *Repository) Migrate(cfg *config.Config) error {
	driver, err := postgres.WithInstance(r.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.Database.MigrationsPath, cfg.Database.Name, driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.DB.Close()
}

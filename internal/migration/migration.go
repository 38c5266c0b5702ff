package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/pkg/db"
	"gorm.io/gorm"
)

//go:embed sql
var embeddedMigrations embed.FS

// RunMigrations applies the versioned SQL for dialect (postgres or mysql).
func RunMigrations(conn *sql.DB, dialect string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, "sql/"+dialect)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case db.TypePostgres:
		driver, err = postgres.WithInstance(conn, &postgres.Config{})
	case db.TypeMySQL:
		driver, err = mysql.WithInstance(conn, &mysql.Config{})
	default:
		return fmt.Errorf("no versioned migrations for %s", dialect)
	}
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models. Used for embedded sqlite
// and tests.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&inventorydomain.Item{},
		&orderdomain.Order{},
		&orderdomain.Line{},
		&invoicedomain.Invoice{},
		&auditdomain.AuditLog{},
	)
}

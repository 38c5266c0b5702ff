package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"postgres", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"mysql", &mysql.MySQLError{Number: 1062}, true},
		{"sqlite", errors.New("UNIQUE constraint failed: invoices.invoice_number"), true},
		{"other", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestIsLockTimeoutErr(t *testing.T) {
	assert.True(t, IsLockTimeoutErr(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, IsLockTimeoutErr(&mysql.MySQLError{Number: 1205}))
	assert.True(t, IsLockTimeoutErr(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsLockTimeoutErr(errors.New("syntax error")))
	assert.False(t, IsLockTimeoutErr(nil))
}

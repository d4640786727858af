// internal/infra/database/sql_notification_repository.go
package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"notification_mailer/internal/domain/notification"

	"github.com/jmoiron/sqlx"
)

// Custom errors specific to notification repository
var ErrRecordNotFound = errors.New("notification record not found")
var ErrInvalidIdentifier = errors.New("invalid SQL identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Nullable flags and texts are coalesced so a sloppy row never breaks the scan.
const selectPendingQuery = `SELECT id,
       COALESCE(novedad, '') AS novedad,
       COALESCE(descripcion, '') AS descripcion,
       fecha_inicio, fecha_fin, icono,
       COALESCE(habilitado, FALSE) AS habilitado,
       id_usuario,
       %[2]s AS created_at,
       %[3]s AS updated_at,
       COALESCE(forzar_visualizacion, FALSE) AS forzar_visualizacion,
       link, imagen,
       COALESCE(email, '') AS email,
       COALESCE(email_enviado, FALSE) AS email_enviado,
       usuario
FROM %[1]s
WHERE COALESCE(email_enviado, FALSE) = FALSE`

const markSentQuery = `UPDATE %s SET email_enviado = TRUE WHERE id = ?`

type SQLNotificationRepository struct {
	db          *sqlx.DB
	selectQuery string
	updateQuery string
}

// NewSQLNotificationRepository reads pending records from pendingSource (a table or view)
// and writes the sent flag to recordsTable.
func NewSQLNotificationRepository(db *sqlx.DB, pendingSource, recordsTable string) (*SQLNotificationRepository, error) {
	for _, name := range []string{pendingSource, recordsTable} {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	quote := identifierQuoter(db.DriverName())
	return &SQLNotificationRepository{
		db:          db,
		selectQuery: fmt.Sprintf(selectPendingQuery, pendingSource, quote("createdAt"), quote("updatedAt")),
		updateQuery: db.Rebind(fmt.Sprintf(markSentQuery, recordsTable)),
	}, nil
}

// identifierQuoter returns the quoting for mixed-case column names.
// MySQL reads double quotes as string literals unless ANSI_QUOTES is set.
func identifierQuoter(driver string) func(string) string {
	if driver == "mysql" {
		return func(name string) string { return "`" + name + "`" }
	}
	return func(name string) string { return `"` + name + `"` }
}

func (r *SQLNotificationRepository) ListPending(ctx context.Context) ([]*notification.Record, error) {
	records := make([]*notification.Record, 0)
	if err := r.db.SelectContext(ctx, &records, r.selectQuery); err != nil {
		return nil, fmt.Errorf("error querying pending notification records: %w", err)
	}
	return records, nil
}

func (r *SQLNotificationRepository) MarkSent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.updateQuery, id)
	if err != nil {
		return fmt.Errorf("error marking notification record %d as sent: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for record %d: %w", id, err)
	}
	// Drivers report matched rows, so re-marking a sent record still counts as one.
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *SQLNotificationRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("error pinging notification store: %w", err)
	}
	return nil
}

// internal/domain/notification/record.go
package notification

import (
	"database/sql"
	"time"
)

// Record is a pending notification produced by the backoffice.
// Column names follow the 'pem_novedades' table and the pending-mail view over it.
type Record struct {
	ID           int64          `db:"id"`
	Title        string         `db:"novedad"`
	Description  string         `db:"descripcion"`
	StartDate    sql.NullTime   `db:"fecha_inicio"`
	EndDate      sql.NullTime   `db:"fecha_fin"`
	Icon         sql.NullString `db:"icono"`
	Enabled      bool           `db:"habilitado"`
	UserID       sql.NullInt64  `db:"id_usuario"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
	ForceDisplay bool           `db:"forzar_visualizacion"`
	Link         sql.NullString `db:"link"`  // Optional "more information" URL
	Image        sql.NullString `db:"imagen"` // Optional image URL
	Email        string         `db:"email"`
	EmailSent    bool           `db:"email_enviado"` // Only ever flips false -> true
	Username     sql.NullString `db:"usuario"`
}

// Pending reports whether the record is still eligible for dispatch.
func (r *Record) Pending() bool {
	return !r.EmailSent
}

// HasLink reports whether the record carries a non-empty link.
func (r *Record) HasLink() bool {
	return r.Link.Valid && r.Link.String != ""
}

// HasImage reports whether the record carries a non-empty image reference.
func (r *Record) HasImage() bool {
	return r.Image.Valid && r.Image.String != ""
}

// Window returns the validity window, zero times for missing bounds.
func (r *Record) Window() (start, end time.Time) {
	if r.StartDate.Valid {
		start = r.StartDate.Time
	}
	if r.EndDate.Valid {
		end = r.EndDate.Time
	}
	return start, end
}

package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	domainMail "notification_mailer/internal/domain/mail"
	"notification_mailer/internal/domain/notification"

	"github.com/Masterminds/sprig/v3"
)

// DateLayout renders dates the way es-AR readers expect them (dd/mm/yyyy).
const DateLayout = "02/01/2006"

var (
	notificationTemplate = template.New("notification").Funcs(sprig.FuncMap())

	//go:embed templates/notification.html
	notificationTemplateRaw string
)

func init() {
	if _, err := notificationTemplate.Parse(notificationTemplateRaw); err != nil {
		panic(err)
	}
}

// NotificationMailParams is the view of a record handed to the template.
type NotificationMailParams struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	HasStart    bool
	HasEnd      bool
	Link        string
	Image       string
	DateLayout  string
	Zone        string
}

// Renderer turns records into email content. It performs no I/O.
type Renderer struct {
	subjectPrefix string
	zone          string
}

// NewRenderer builds a Renderer. Dates are printed in UTC, which keeps DATE
// columns on the calendar day they were stored with.
func NewRenderer(subjectPrefix string) *Renderer {
	return &Renderer{subjectPrefix: subjectPrefix, zone: "UTC"}
}

func (r *Renderer) Render(rec *notification.Record) (domainMail.Content, error) {
	if rec == nil {
		return domainMail.Content{}, fmt.Errorf("cannot render nil record")
	}
	start, end := rec.Window()
	p := NotificationMailParams{
		Title:       rec.Title,
		Description: rec.Description,
		StartDate:   start,
		EndDate:     end,
		HasStart:    rec.StartDate.Valid,
		HasEnd:      rec.EndDate.Valid,
		DateLayout:  DateLayout,
		Zone:        r.zone,
	}
	if rec.HasLink() {
		p.Link = rec.Link.String
	}
	if rec.HasImage() {
		p.Image = rec.Image.String
	}

	body, err := render(notificationTemplate, p)
	if err != nil {
		return domainMail.Content{}, fmt.Errorf("error rendering record %d: %w", rec.ID, err)
	}
	return domainMail.Content{Subject: r.subjectPrefix + rec.Title, HTMLBody: body}, nil
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

package email

import (
	"bytes"
	"context"
	"net/mail"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/logger"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

var checkOutTemplate = template.Must(template.New("checkout").Parse(`Hi {{.Name}},

Thanks for attending{{if .Event}} {{.Event}}{{end}}.

You were checked out at {{.At}} after {{.Duration}} minutes, an attendance rate of {{.Rate}}%.
`))

// CheckOutNotifier emails participants their attendance once they check out.
// Delivery runs in the background and failures are only logged.
type CheckOutNotifier struct {
	mailer  Mailer
	log     logger.Logger
	loc     *time.Location
	timeout time.Duration
	wg      sync.WaitGroup
}

var _ attendance.Notifier = (*CheckOutNotifier)(nil)

func NewCheckOutNotifier(mailer Mailer, log logger.Logger, loc *time.Location) *CheckOutNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &CheckOutNotifier{mailer: mailer, log: log, loc: loc, timeout: 30 * time.Second}
}

func (n *CheckOutNotifier) Notify(_ context.Context, note attendance.Notification) error {
	if note.Type != models.EventCheckOut || note.UserEmail == "" {
		return nil
	}

	var body bytes.Buffer
	err := checkOutTemplate.Execute(&body, map[string]interface{}{
		"Name":     note.UserName,
		"Event":    note.EventTitle,
		"At":       note.Timestamp.In(n.loc).Format("Mon 02 Jan 2006 15:04"),
		"Duration": note.Duration,
		"Rate":     note.AttendanceRate,
	})
	if err != nil {
		return err
	}

	subject := "Your attendance record"
	if title := strings.Join(strings.Fields(note.EventTitle), " "); title != "" {
		subject += ": " + title
	}
	msg := Message{
		To:      mail.Address{Name: note.UserName, Address: note.UserEmail},
		Subject: subject,
		Text:    body.String(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.mailer.Send(ctx, msg); err != nil {
			n.log.Warn("sending check-out email failed", err, map[string]interface{}{"registration": note.RegistrationID.String()})
		}
	}()
	return nil
}

// Wait blocks until queued emails have been attempted.
func (n *CheckOutNotifier) Wait() {
	n.wg.Wait()
}

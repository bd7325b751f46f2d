package email

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/logger"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("Events <noreply@example.com>", "ana@example.com", "Hello", "body")
	assert.Equal(t, "From: Events <noreply@example.com>\r\nTo: ana@example.com\r\nSubject: Hello\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nbody", msg)
}

func TestBuildMessage_SubjectCannotAddHeaders(t *testing.T) {
	msg := buildMessage("noreply@example.com", "ana@example.com", "Fair\r\nBcc: all@example.com", "body")

	headers := strings.SplitN(msg, "\r\n\r\n", 2)[0]
	assert.NotContains(t, headers, "\r\nBcc:")
	assert.Len(t, strings.Split(headers, "\r\n"), 5)
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	msg := buildMessage("noreply@example.com", "ana@example.com", "Hội thảo", "body")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
}

func TestParseAddress(t *testing.T) {
	assert.Equal(t, "noreply@example.com", parseAddress("Events <noreply@example.com>"))
	assert.Equal(t, "noreply@example.com", parseAddress(" noreply@example.com "))
}

func TestConsoleMailer(t *testing.T) {
	var out bytes.Buffer
	m := NewConsoleMailer(&out, "Events <noreply@example.com>")

	err := m.Send(context.Background(), Message{To: mail.Address{Name: "Ana", Address: "ana@example.com"}, Subject: "Hi", Text: "body"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `To: "Ana" <ana@example.com>`)
	assert.Contains(t, out.String(), "Subject: Hi")
	assert.Len(t, m.Sent(), 1)
}

func TestSendgridMailer(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		if r.URL.Path != sendgridEndpoint {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendgridMailer("SG.key", "Events <noreply@example.com>")
	m.host = srv.URL

	err := m.Send(context.Background(), Message{To: mail.Address{Address: "ana@example.com"}, Subject: "Hi", Text: "body"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer SG.key", auth)
	from, _ := got["from"].(map[string]interface{})
	assert.Equal(t, "noreply@example.com", from["email"])
	assert.Equal(t, "Events", from["name"])
}

func TestSendgridMailer_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := NewSendgridMailer("bad", "noreply@example.com")
	m.host = srv.URL
	err := m.Send(context.Background(), Message{To: mail.Address{Address: "ana@example.com"}, Subject: "Hi", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, Message) error { return errors.New("smtp down") }

func TestCheckOutNotifier(t *testing.T) {
	console := NewConsoleMailer(io.Discard, "noreply@example.com")
	n := NewCheckOutNotifier(console, logger.Discard(), time.UTC)

	checkOut := attendance.Notification{
		Type:           models.EventCheckOut,
		RegistrationID: uuid.New(),
		UserName:       "Ana",
		UserEmail:      "ana@example.com",
		EventTitle:     "Career fair",
		Timestamp:      time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC),
		Duration:       355,
		AttendanceRate: 74,
	}
	require.NoError(t, n.Notify(context.Background(), checkOut))
	require.NoError(t, n.Notify(context.Background(), attendance.Notification{Type: models.EventCheckIn, UserEmail: "ana@example.com"}))
	noEmail := checkOut
	noEmail.UserEmail = ""
	require.NoError(t, n.Notify(context.Background(), noEmail))
	n.Wait()

	sent := console.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Your attendance record: Career fair", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "after 355 minutes, an attendance rate of 74%")
	assert.Contains(t, sent[0].Text, "Fri 15 Mar 2024 16:00")
}

func TestCheckOutNotifier_TitleLineBreaks(t *testing.T) {
	console := NewConsoleMailer(io.Discard, "noreply@example.com")
	n := NewCheckOutNotifier(console, logger.Discard(), time.UTC)

	require.NoError(t, n.Notify(context.Background(), attendance.Notification{
		Type:       models.EventCheckOut,
		UserEmail:  "ana@example.com",
		EventTitle: "Career fair\r\nBcc: all@example.com",
	}))
	n.Wait()

	sent := console.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Your attendance record: Career fair Bcc: all@example.com", sent[0].Subject)
}

func TestCheckOutNotifier_DeliveryFailureIsNotReturned(t *testing.T) {
	n := NewCheckOutNotifier(failingMailer{}, logger.Discard(), nil)
	err := n.Notify(context.Background(), attendance.Notification{Type: models.EventCheckOut, UserEmail: "ana@example.com"})
	n.Wait()
	assert.NoError(t, err)
}

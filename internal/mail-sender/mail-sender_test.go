package mailsender

import (
	"bytes"
	"errors"
	"testing"

	"gametrack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

var msg = models.Message{
	Email:   "bob@example.com",
	Link:    "https://app.example.com/auth/verify?token=tok",
	Subject: "Verify your Email",
	Body:    "<b>hi</b>",
	From:    "no-reply@example.com",
}

func TestCompose(t *testing.T) {
	gm, err := Compose(msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"bob@example.com"}, gm.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@example.com"}, gm.GetHeader("From"))
	assert.Equal(t, []string{"Verify your Email"}, gm.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = gm.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "text/html")
}

func TestCompose_Invalid(t *testing.T) {
	_, err := Compose(models.Message{From: "x@example.com"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestSend(t *testing.T) {
	d := &fakeDialer{}
	m := NewWithDialer(d)

	require.NoError(t, m.Send(msg))
	assert.Len(t, d.sent, 1)

	d.err = errors.New("smtp down")
	assert.Error(t, m.Send(msg))
}

package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEmailChannel_SendsPlainText(t *testing.T) {
	var bodies []string
	ch := &EmailChannel{
		send: func(message string) []error {
			bodies = append(bodies, message)
			return []error{nil}
		},
		logger: zaptest.NewLogger(t),
	}

	require.NoError(t, ch.Send(t.Context(), "🌾 <b>FEED STOCK LOW</b>\n<b>Silo:</b> north &amp; east"))

	require.Len(t, bodies, 1)
	assert.Equal(t, "🌾 FEED STOCK LOW\nSilo: north & east", bodies[0])
	assert.Equal(t, "email", ch.Name())
}

func TestEmailChannel_JoinsErrors(t *testing.T) {
	smtpErr := errors.New("dial tcp: connection refused")
	ch := &EmailChannel{
		send:   func(string) []error { return []error{smtpErr} },
		logger: zaptest.NewLogger(t),
	}

	err := ch.Send(t.Context(), "hello")

	assert.ErrorIs(t, err, smtpErr)
}

func TestNewEmailChannel_InvalidURL(t *testing.T) {
	_, err := NewEmailChannel("nope://", zaptest.NewLogger(t))
	assert.Error(t, err)
}

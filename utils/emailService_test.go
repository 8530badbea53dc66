package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMessage_UserTextCannotAddHeaders(t *testing.T) {
	msg := string(smtpMessage("portal@ncit.edu.np", []string{"asha@ncit.edu.np"},
		"Certificate Issued: Hackathon\r\nBcc: attacker@example.com\nX-Evil: 1", "<p>body</p>"))

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, "<p>body</p>", body)

	lines := strings.Split(head, "\r\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, "Subject: Certificate Issued: Hackathon Bcc: attacker@example.com X-Evil: 1", lines[4])
	for _, line := range lines {
		assert.NotContains(t, line, "\n")
		assert.False(t, strings.HasPrefix(line, "Bcc:"))
	}
}

func TestHeaderValue(t *testing.T) {
	assert.Equal(t, "plain title", headerValue("plain title"))
	assert.Equal(t, "a b c", headerValue("a\r\nb\rc"))
}

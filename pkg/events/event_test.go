package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecisionsSubmitted(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	e := DecisionsSubmitted("s-1", []string{"write_file"}, []string{"approve"}, at)

	assert.Equal(t, TypeDecisionsSubmitted, e.EventType())
	assert.Equal(t, at, e.Timestamp())
	assert.Equal(t, "s-1", e.Payload()["session_id"])
	assert.Equal(t, "2024-03-01T10:00:00Z", e.Payload()["submitted_at"])
}

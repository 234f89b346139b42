package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	e := Build("04-1A-2B-3C", "gate-1", DefaultPlace, now)

	assert.Equal(t, "Read smart card.", e.Description)
	assert.Equal(t, "Zelenograd", e.Place)
	assert.Equal(t, "gate-1", e.Initiator)
	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, map[string]string{"UID": "04-1A-2B-3C"}, e.Data)
	assert.Equal(t, "04-1A-2B-3C", e.UID())
}

func TestEventWireFormat(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	e := Build("04-1A-2B-3C", "gate-1", DefaultPlace, now)
	b, err := json.Marshal(e)
	require.NoError(t, err)

	want := `{
		"description": "Read smart card.",
		"place": "Zelenograd",
		"initiator": "gate-1",
		"dateTime": "2024-03-01T12:30:00Z",
		"data": {"UID": "04-1A-2B-3C"}
	}`
	assert.JSONEq(t, want, string(b))
	assert.JSONEq(t, want, e.String())
}

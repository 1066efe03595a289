package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(zerolog.New(&buf))

	Log(ActionSubmission, "user-1", "form-1", "record=rec1", false, errors.New("boom"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "airform", got["service"])
	assert.Equal(t, ActionSubmission, got["action"])
	assert.Equal(t, "user-1", got["user"])
	assert.Equal(t, "form-1", got["target"])
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "boom", got["error"])
	assert.Contains(t, got, "event_time")
}

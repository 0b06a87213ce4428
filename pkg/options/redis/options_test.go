package redis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_RedactsPassword(t *testing.T) {
	o := NewOptions()
	o.Password = "hunter2"

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), redactedPassword)
	assert.NotContains(t, o.String(), "hunter2")
}

func TestOptions_Complete(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "from-env")

	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "from-env", o.Password)

	o = NewOptions()
	o.Password = "explicit"
	require.NoError(t, o.Complete())
	assert.Equal(t, "explicit", o.Password)
}

func TestOptions_Validate(t *testing.T) {
	assert.Empty(t, NewOptions().Validate())

	o := NewOptions()
	o.Host = ""
	o.Port = 0
	assert.Len(t, o.Validate(), 2)
	assert.Equal(t, "127.0.0.1:6379", NewOptions().Addr())
}

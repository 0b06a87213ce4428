package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkPayload struct {
	FileID string `json:"file_id"`
	Index  int    `json:"chunk_index"`
	Text   string `json:"text"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := chunkPayload{FileID: "u_c_1", Index: 3, Text: "<script>alert(1)</script>"}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out chunkPayload
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"b": 2, "a": 1}))

	var out map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, 1, out["a"])
	assert.Equal(t, 2, out["b"])
}

func TestRawMessage(t *testing.T) {
	var v struct {
		ReplyTo RawMessage `json:"replyTo"`
	}
	require.NoError(t, Unmarshal([]byte(`{"replyTo":"hello"}`), &v))
	assert.Equal(t, `"hello"`, string(v.ReplyTo))
}

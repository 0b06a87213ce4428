package assistant

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, 2000, o.ChunkSize)
	assert.Equal(t, 3, o.SummaryMaxDepth)
	assert.Equal(t, 10, o.HistoryWindow)
	assert.Equal(t, 0.8, o.Memory.FactImportance)
	assert.Equal(t, 0.7, o.Memory.FileImportance)
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--assistant.store=memory",
		"--assistant.vector=memory",
		"--assistant.memory.limit=3",
	}))
	assert.Equal(t, StoreMemory, o.Store)
	assert.Equal(t, VectorMemory, o.Vector)
	assert.Equal(t, 3, o.Memory.Limit)
}

func TestValidate_Rejects(t *testing.T) {
	o := NewOptions()
	o.Store = "sqlite"
	o.ChunkSize = 0
	o.Memory.FactImportance = 1.5

	errs := o.Validate()
	assert.Len(t, errs, 3)
}

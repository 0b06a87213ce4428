package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.Backend = BackendS3
	assert.Len(t, o.Validate(), 1)

	o.S3.Bucket = "uploads"
	assert.Empty(t, o.Validate())

	o.Backend = "ftp"
	assert.Len(t, o.Validate(), 1)
}

func TestComplete_ReadsSecretOnlyWithKeyID(t *testing.T) {
	t.Setenv("AWS_SECRET_ACCESS_KEY", "shh")

	o := NewOptions()
	assert.NoError(t, o.Complete())
	assert.Empty(t, o.S3.SecretAccessKey)

	o.S3.AccessKeyID = "AKIA"
	assert.NoError(t, o.Complete())
	assert.Equal(t, "shh", o.S3.SecretAccessKey)
}

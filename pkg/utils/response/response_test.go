package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestError_UsesErrnoStatus(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Writer.Header().Set(HeaderRequestID, "req-1")

	Error(c, fmt.Errorf("rename: %w", errors.ErrDuplicateTitle))

	assert.Equal(t, http.StatusConflict, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrDuplicateTitle.Code, body.Code)
	assert.Equal(t, errors.ErrDuplicateTitle.MessageEN, body.Message)
	assert.Equal(t, "req-1", body.RequestID)
	assert.True(t, c.IsAborted())
}

func TestError_UnknownBecomesInternal(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Error(c, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

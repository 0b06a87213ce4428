package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtopts "github.com/kart-io/moktashif/pkg/options/jwt"
	"github.com/kart-io/moktashif/pkg/utils/json"
	"github.com/kart-io/moktashif/pkg/utils/response"
)

const testKey = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":       UserID(c),
			"ctx_user":   UserIDFrom(c.Request.Context()),
			"request_id": RequestIDFrom(c.Request.Context()),
		})
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)
	return s
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newEngine(RequestIDMiddleware())

	w := do(r, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	generated := w.Header().Get(response.HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Contains(t, w.Body.String(), generated)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(response.HeaderRequestID, "req-1")
	w = do(r, req)
	assert.Equal(t, "req-1", w.Header().Get(response.HeaderRequestID))
}

func TestIdentity_Token(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.Key = testKey
	r := newEngine(RequestIDMiddleware(), Identity(opts))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{
		"id":  "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}))
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user-42", body["user"])
	assert.Equal(t, "user-42", body["ctx_user"])
}

func TestIdentity_Rejects(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.Key = testKey
	r := newEngine(Identity(opts))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"expired", "Bearer " + sign(t, jwt.MapClaims{"id": "u", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no id claim", "Bearer " + sign(t, jwt.MapClaims{"sub": "u"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := do(r, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestIdentity_WrongKey(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.Key = "ffffffffffffffffffffffffffffffff"
	r := newEngine(Identity(opts))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"id": "u"}))
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)
}

func TestIdentity_DisableAuth(t *testing.T) {
	opts := jwtopts.NewOptions()
	opts.DisableAuth = true
	r := newEngine(Identity(opts))

	assert.Equal(t, http.StatusUnauthorized, do(r, httptest.NewRequest(http.MethodGet, "/whoami", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "dev")
	w := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"dev"`)
}

func TestRecovery(t *testing.T) {
	r := newEngine(RequestIDMiddleware(), Recovery())
	w := do(r, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RequestID)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS("https://app.example/"))
	r.OPTIONS("/whoami", func(*gin.Context) {})

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "https://app.example")
	w := do(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = do(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	r = newEngine(CORS("*"))
	w = do(r, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Web-Search-Used")
}

func TestLogger_PassesThrough(t *testing.T) {
	r := newEngine(Logger())
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/whoami", nil)).Code)
}

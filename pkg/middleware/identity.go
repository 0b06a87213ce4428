package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/kart-io/moktashif/pkg/errors"
	jwtopts "github.com/kart-io/moktashif/pkg/options/jwt"
	"github.com/kart-io/moktashif/pkg/utils/response"
)

// HeaderUserID carries the user id when token verification is disabled.
const HeaderUserID = "X-User-ID"

// Identity resolves the caller's user id and stores it in the gin and request
// contexts. With auth enabled it verifies an HMAC bearer token and reads the
// configured user claim; with auth disabled it trusts X-User-ID.
func Identity(opts *jwtopts.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			userID string
			err    error
		)
		if opts.DisableAuth {
			userID = strings.TrimSpace(c.GetHeader(HeaderUserID))
			if userID == "" {
				err = errors.ErrUnauthorized.WithMessage("missing " + HeaderUserID + " header")
			}
		} else {
			userID, err = verifyBearer(c.GetHeader("Authorization"), opts)
		}
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ginUserIDKey, userID)
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func verifyBearer(header string, opts *jwtopts.Options) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", errors.ErrUnauthorized
	}
	raw := strings.TrimSpace(header[len(prefix):])

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != opts.SigningMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(opts.Key), nil
	})
	if err != nil || !token.Valid {
		return "", errors.ErrInvalidToken.WithCause(err)
	}
	if opts.Issuer != "" && !claims.VerifyIssuer(opts.Issuer, true) {
		return "", errors.ErrInvalidToken.WithMessage("unexpected issuer")
	}

	userID := claimString(claims[opts.UserClaim])
	if userID == "" {
		return "", errors.ErrInvalidToken.WithMessage("token has no " + opts.UserClaim + " claim")
	}
	return userID, nil
}

func claimString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

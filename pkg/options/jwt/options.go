// Package jwt provides options for verifying bearer tokens.
//
// Tokens are issued elsewhere; this service only verifies them and reads the
// user id from the "id" claim.
//
// Configuration Example (YAML):
//
//	jwt:
//	  key: "your-secret-key-min-32-chars-long"
//	  signing-method: "HS256"
//	  issuer: "moktashif"
//
// Environment Variables:
//
//	JWT_SECRET - JWT verification key
package jwt

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kart-io/moktashif/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// DefaultSigningMethod is the default JWT signing algorithm.
	DefaultSigningMethod = "HS256"

	// DefaultUserClaim is the claim carrying the user id.
	DefaultUserClaim = "id"

	// MinKeyLength is the minimum required key length for HMAC keys.
	MinKeyLength = 32
)

// SupportedSigningMethods contains the accepted HMAC algorithms.
var SupportedSigningMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Options contains JWT verification configuration.
type Options struct {
	// DisableAuth trusts the X-User-ID header instead of verifying a token.
	// Only meant for local development.
	DisableAuth bool `json:"disable-auth" mapstructure:"disable-auth"`

	// Key is the HMAC secret used to verify tokens.
	Key string `json:"-" mapstructure:"key"`

	// SigningMethod is the expected JWT signing algorithm.
	SigningMethod string `json:"signing-method" mapstructure:"signing-method"`

	// Issuer, when set, must match the iss claim.
	Issuer string `json:"issuer" mapstructure:"issuer"`

	// UserClaim names the claim carrying the user id.
	UserClaim string `json:"user-claim" mapstructure:"user-claim"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		SigningMethod: DefaultSigningMethod,
		UserClaim:     DefaultUserClaim,
	}
}

// Validate validates the JWT options.
func (o *Options) Validate() []error {
	if o == nil || o.DisableAuth {
		return nil
	}

	var errs []error
	if !SupportedSigningMethods[o.SigningMethod] {
		errs = append(errs, fmt.Errorf("unsupported signing method: %s", o.SigningMethod))
	}
	if o.Key == "" {
		errs = append(errs, fmt.Errorf("jwt key is required"))
	} else if len(o.Key) < MinKeyLength {
		errs = append(errs, fmt.Errorf("jwt key must be at least %d characters, got: %d", MinKeyLength, len(o.Key)))
	}
	if o.UserClaim == "" {
		errs = append(errs, fmt.Errorf("jwt user-claim is required"))
	}
	return errs
}

// Complete fills in default values and reads the key from JWT_SECRET.
func (o *Options) Complete() error {
	if o.Key == "" {
		o.Key = os.Getenv("JWT_SECRET")
	}
	if o.SigningMethod == "" {
		o.SigningMethod = DefaultSigningMethod
	}
	if o.UserClaim == "" {
		o.UserClaim = DefaultUserClaim
	}
	return nil
}

// AddFlags adds flags for JWT options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "jwt."
	fs.BoolVar(&o.DisableAuth, p+"disable-auth", o.DisableAuth,
		"Disable token verification and trust the X-User-ID header")
	fs.StringVar(&o.SigningMethod, p+"signing-method", o.SigningMethod,
		"Expected JWT signing algorithm (HS256, HS384, HS512)")
	fs.StringVar(&o.Issuer, p+"issuer", o.Issuer,
		"Required token issuer (iss claim), empty accepts any")
	fs.StringVar(&o.UserClaim, p+"user-claim", o.UserClaim,
		"Claim carrying the user id")
}

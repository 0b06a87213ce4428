// Package mongodb provides MongoDB options.
package mongodb

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/moktashif/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// redactedPassword is the placeholder used when serializing passwords.
const redactedPassword = "[REDACTED]"

// Options defines configuration options for MongoDB.
type Options struct {
	URI      string `json:"uri" mapstructure:"uri"`           // MongoDB URI (mongodb://...), wins over host/port
	Host     string `json:"host" mapstructure:"host"`         // Host (if not using URI)
	Port     int    `json:"port" mapstructure:"port"`         // Port (default 27017)
	Username string `json:"username" mapstructure:"username"` // Username
	Password string `json:"-" mapstructure:"password"`        // Password, read from MONGODB_PASSWORD when empty
	Database string `json:"database" mapstructure:"database"` // Database name

	MaxPoolSize            uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`
	AuthSource             string        `json:"auth-source" mapstructure:"auth-source"`
}

// MarshalJSON implements json.Marshaler with the password and URI credentials redacted.
func (o *Options) MarshalJSON() ([]byte, error) {
	type plain Options
	cp := plain(*o)
	cp.URI = redactURI(o.URI)

	password := ""
	if o.Password != "" {
		password = redactedPassword
	}
	return json.Marshal(struct {
		plain
		Password string `json:"password"`
	}{cp, password})
}

// String returns a string representation safe for logging.
func (o *Options) String() string {
	if o.URI != "" {
		return fmt.Sprintf("MongoDB{uri=%s, database=%s}", redactURI(o.URI), o.Database)
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, database=%s}", o.Host, o.Port, o.Username, o.Database)
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "vuln_analyzer",
		MaxPoolSize:            100,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
		AuthSource:             "admin",
	}
}

// Complete reads credentials from the environment when unset.
func (o *Options) Complete() error {
	if o.URI == "" {
		o.URI = os.Getenv("MONGO_URI")
	}
	if o.Password == "" {
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URI == "" {
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("mongodb host is required when uri is not provided"))
		}
		if o.Port <= 0 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("mongodb port must be between 1 and 65535"))
		}
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongodb database is required"))
	}
	return errs
}

// AddFlags adds flags for MongoDB options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.StringVar(&o.URI, p+"uri", o.URI, "MongoDB URI (mongodb://...). Defaults to $MONGO_URI.")
	fs.StringVar(&o.Host, p+"host", o.Host, "MongoDB service host address.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MongoDB service port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Username for access to mongodb service.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name for the server to use.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum number of connections in the pool.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Timeout for connection.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Timeout for server selection.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "MongoDB authentication source.")
}

// BuildURI returns URI when set, otherwise assembles one from host, port and credentials.
func (o *Options) BuildURI() string {
	if o.URI != "" {
		return o.URI
	}

	var uri strings.Builder
	uri.WriteString("mongodb://")
	if o.Username != "" {
		uri.WriteString(url.QueryEscape(o.Username))
		if o.Password != "" {
			uri.WriteString(":" + url.QueryEscape(o.Password))
		}
		uri.WriteString("@")
	}
	uri.WriteString(o.Host)
	if o.Port != 0 {
		fmt.Fprintf(&uri, ":%d", o.Port)
	}
	uri.WriteString("/")

	if o.AuthSource != "" && o.AuthSource != "admin" {
		uri.WriteString("?" + url.Values{"authSource": {o.AuthSource}}.Encode())
	}
	return uri.String()
}

func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redactedPassword)
	}
	return u.String()
}

// Package storage provides options for raw upload storage.
package storage

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kart-io/moktashif/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Backend names.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Options configures where uploaded files are kept.
type Options struct {
	// Backend is local or s3.
	Backend string `json:"backend" mapstructure:"backend"`

	// Dir is the upload directory for the local backend.
	Dir string `json:"dir" mapstructure:"dir"`

	// S3 configures the s3 backend.
	S3 *S3Options `json:"s3" mapstructure:"s3"`
}

// S3Options configures an S3 compatible bucket.
type S3Options struct {
	Bucket          string `json:"bucket" mapstructure:"bucket"`
	Region          string `json:"region" mapstructure:"region"`
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"` // MinIO and other compatible services
	Prefix          string `json:"prefix" mapstructure:"prefix"`
	AccessKeyID     string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `json:"-" mapstructure:"secret-access-key"`
	UsePathStyle    bool   `json:"use-path-style" mapstructure:"use-path-style"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend: BackendLocal,
		Dir:     "uploads",
		S3: &S3Options{
			Region: "us-east-1",
			Prefix: "uploads/",
		},
	}
}

// AddFlags adds flags for storage options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "storage."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Upload storage backend (local, s3).")
	fs.StringVar(&o.Dir, p+"dir", o.Dir, "Upload directory for the local backend.")

	if o.S3 == nil {
		o.S3 = &S3Options{}
	}
	fs.StringVar(&o.S3.Bucket, p+"s3.bucket", o.S3.Bucket, "S3 bucket name.")
	fs.StringVar(&o.S3.Region, p+"s3.region", o.S3.Region, "S3 region.")
	fs.StringVar(&o.S3.Endpoint, p+"s3.endpoint", o.S3.Endpoint, "Custom S3 endpoint (MinIO etc.).")
	fs.StringVar(&o.S3.Prefix, p+"s3.prefix", o.S3.Prefix, "Object key prefix.")
	fs.StringVar(&o.S3.AccessKeyID, p+"s3.access-key-id", o.S3.AccessKeyID, "Static access key id, empty uses the default credential chain.")
	fs.BoolVar(&o.S3.UsePathStyle, p+"s3.use-path-style", o.S3.UsePathStyle, "Use path-style addressing.")
}

// Complete reads the S3 secret from AWS_SECRET_ACCESS_KEY when a static key id is set.
func (o *Options) Complete() error {
	if o.S3 != nil && o.S3.AccessKeyID != "" && o.S3.SecretAccessKey == "" {
		o.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	return nil
}

// Validate validates the storage options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendLocal:
		if o.Dir == "" {
			errs = append(errs, fmt.Errorf("storage.dir is required for the local backend"))
		}
	case BackendS3:
		if o.S3 == nil || o.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q", BackendLocal, BackendS3))
	}
	return errs
}

package s3

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/config"
	"github.com/Chapsvision-dev/qdrant-dump/internal/provider"
)

// objectAPI is the subset of *s3.Client used by the provider.
type objectAPI interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// newClient builds an S3 client. Explicit keys win over the default AWS
// credential chain; a custom endpoint switches to path-style addressing
// for S3-compatible stores such as MinIO.
func newClient(ctx context.Context, c config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func init() {
	provider.Register("s3", func(cfg any) (provider.Provider, error) {
		c, ok := cfg.(config.Config)
		if !ok {
			return nil, errors.Newf("s3: invalid config type %T", cfg)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client, err := newClient(ctx, c.S3)
		if err != nil {
			return nil, errors.Wrap(err, "s3")
		}
		log.Debug().
			Str("action", "provider_new").
			Str("provider", "s3").
			Str("bucket", c.S3.Bucket).
			Str("region", c.S3.Region).
			Bool("custom_endpoint", c.S3.Endpoint != "").
			Msg("provider ready")
		return newProvider(client, c.S3.Bucket, c.RetryOptions()), nil
	})
}

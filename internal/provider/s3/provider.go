// Package s3 uploads snapshot files to AWS S3 or an S3-compatible store.
package s3

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/retry"
	"github.com/Chapsvision-dev/qdrant-dump/internal/util"
)

type Provider struct {
	api      objectAPI
	uploader *manager.Uploader
	bucket   string
	ro       retry.Options
}

func newProvider(api objectAPI, bucket string, ro retry.Options) *Provider {
	return &Provider{
		api:      api,
		uploader: manager.NewUploader(api),
		bucket:   bucket,
		ro:       ro,
	}
}

func (p *Provider) Name() string { return "s3" }

// Upload sends the file with the transfer manager (multipart when large),
// then checks the stored size and sha256 metadata with HeadObject.
func (p *Provider) Upload(ctx context.Context, source, key string, meta map[string]string) error {
	key = strings.TrimPrefix(key, "/")

	digest, err := util.SHA256File(source)
	if err != nil {
		return errors.Wrap(err, "checksum")
	}
	metadata := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		metadata[k] = v
	}
	metadata["sha256"] = digest.Hex

	start := time.Now()
	attempts := 0
	uploadOnce := func(ctx context.Context) error {
		attempts++
		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String("application/octet-stream"),
			Metadata:    metadata,
		})
		return err
	}
	if err := retry.Do(ctx, p.retryOptions("s3_upload", key), isRetryable, uploadOnce); err != nil {
		return errors.Wrap(err, "upload")
	}
	log.Info().Str("action", "s3_upload").Str("bucket", p.bucket).Str("key", key).
		Int("attempts", attempts).Dur("elapsed_ms", time.Since(start)).Msg("upload OK")

	headOnce := func(ctx context.Context) error {
		out, err := p.api.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		return verify(digest, out)
	}
	if err := retry.Do(ctx, p.retryOptions("s3_head", key), isRetryable, headOnce); err != nil {
		return errors.Wrap(err, "validate (head)")
	}
	log.Info().Str("action", "s3_head").Str("bucket", p.bucket).Str("key", key).
		Msg("validation OK (sha256 & size)")
	return nil
}

func (p *Provider) retryOptions(action, key string) retry.Options {
	ro := p.ro
	ro.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Debug().Err(err).Str("action", action).Str("bucket", p.bucket).Str("key", key).
			Int("attempt", attempt).Dur("wait", wait).Msg("attempt failed, retrying")
	}
	return ro
}

// verify compares HeadObject output with the local file.
func verify(local util.Digest, out *s3.HeadObjectOutput) error {
	remoteSize := aws.ToInt64(out.ContentLength)
	if remoteSize != local.Size {
		return errors.Newf("size mismatch: local=%d, remote=%d", local.Size, remoteSize)
	}
	// S3 lowercases user metadata keys.
	sha := out.Metadata["sha256"]
	if sha == "" {
		return errors.New("missing metadata: sha256")
	}
	if !strings.EqualFold(sha, local.Hex) {
		return errors.Newf("sha256 mismatch: local=%s, remote=%s", local.Hex, sha)
	}
	return nil
}

// isRetryable: timeouts, 408, 429 and 5xx.
func isRetryable(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		return code == http.StatusTooManyRequests ||
			code == http.StatusRequestTimeout ||
			(code >= 500 && code <= 599)
	}
	return false
}

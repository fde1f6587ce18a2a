package azure

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/retry"
	"github.com/Chapsvision-dev/qdrant-dump/internal/util"
)

type Provider struct {
	client    *azblob.Client
	container string
	endpoint  string // e.g. https://<account>.blob.core.windows.net/
	sas       string // raw SAS without leading "?"
	http      *http.Client
	ro        retry.Options
}

func (p *Provider) Name() string { return "azure" }

// Upload sends the file and validates it: HEAD with SAS (size and sha256),
// list otherwise (size).
func (p *Provider) Upload(ctx context.Context, source, key string, meta map[string]string) error {
	if err := p.ensureContainer(ctx); err != nil {
		return errors.Wrap(err, "ensure container")
	}
	key = normalizeKey(key)

	digest, err := util.SHA256File(source)
	if err != nil {
		return errors.Wrap(err, "checksum")
	}
	metadata := blobMetadata(meta, digest.Hex)

	upStart := time.Now()
	upAttempt := 0
	uploadOnce := func(ctx context.Context) error {
		upAttempt++
		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("file", source).Msg("failed to close source file after upload")
			}
		}()
		_, err = p.client.UploadFile(ctx, p.container, key, f, &azblob.UploadFileOptions{Metadata: metadata})
		return err
	}
	if err := retry.Do(ctx, p.retryOptions("azure_upload", key), p.isAzRetryable, uploadOnce); err != nil {
		return errors.Wrap(err, "upload")
	}
	log.Info().Str("action", "azure_upload").Str("container", p.container).Str("key", key).
		Int("attempts", upAttempt).Dur("elapsed_ms", time.Since(upStart)).Msg("upload OK")

	if p.sas != "" {
		return p.validateByHead(ctx, key, digest)
	}
	return p.validateByList(ctx, key, digest.Size)
}

func (p *Provider) validateByHead(ctx context.Context, key string, digest util.Digest) error {
	start := time.Now()
	headOnce := func(ctx context.Context) error {
		remoteSize, remoteSHA, err := p.headSizeAndSHA(ctx, key)
		if err != nil {
			return err
		}
		return compareRemote(digest, remoteSize, remoteSHA, true)
	}
	if err := retry.Do(ctx, p.retryOptions("azure_head", key), p.isAzRetryable, headOnce); err != nil {
		return errors.Wrap(err, "validate (head)")
	}
	log.Info().Str("action", "azure_head").Str("container", p.container).Str("key", key).
		Dur("elapsed_ms", time.Since(start)).Msg("validation OK (sha256 & size)")
	return nil
}

func (p *Provider) validateByList(ctx context.Context, key string, size int64) error {
	start := time.Now()
	validateOnce := func(ctx context.Context) error {
		found, remoteSize, err := p.validateSizeByList(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			return errors.Newf("uploaded blob not found at %q", key)
		}
		return compareRemote(util.Digest{Size: size}, remoteSize, "", false)
	}
	if err := retry.Do(ctx, p.retryOptions("azure_list_validate", key), p.isAzRetryable, validateOnce); err != nil {
		return errors.Wrap(err, "validate (list)")
	}
	log.Info().Str("action", "azure_list_validate").Str("container", p.container).Str("key", key).
		Dur("elapsed_ms", time.Since(start)).Msg("validation OK (size)")
	return nil
}

// retryOptions attaches per-action retry logging to the configured backoff.
func (p *Provider) retryOptions(action, key string) retry.Options {
	ro := p.ro
	ro.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Debug().Err(err).Str("action", action).Str("container", p.container).Str("key", key).
			Int("attempt", attempt).Dur("wait", wait).Msg("attempt failed, retrying")
	}
	return ro
}

// compareRemote checks the uploaded object against the local digest.
func compareRemote(local util.Digest, remoteSize int64, remoteSHA string, checkSHA bool) error {
	if remoteSize != local.Size {
		return errors.Newf("size mismatch: local=%d, remote=%d", local.Size, remoteSize)
	}
	if !checkSHA {
		return nil
	}
	if remoteSHA == "" {
		return errors.New("missing metadata: sha256")
	}
	if !strings.EqualFold(remoteSHA, local.Hex) {
		return errors.Newf("sha256 mismatch: local=%s, remote=%s", local.Hex, remoteSHA)
	}
	return nil
}

// blobMetadata merges caller metadata with the file checksum.
func blobMetadata(meta map[string]string, sha string) map[string]*string {
	out := make(map[string]*string, len(meta)+1)
	for k, v := range meta {
		out[k] = to.Ptr(v)
	}
	out["sha256"] = to.Ptr(sha)
	return out
}

func normalizeKey(k string) string {
	return strings.TrimPrefix(k, "/")
}

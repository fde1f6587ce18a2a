package azure

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/retry"
)

// ensureContainer checks access using a minimal list (SAS sr=c cannot create containers).
func (p *Provider) ensureContainer(ctx context.Context) error {
	start := time.Now()
	ensureOnce := func(ctx context.Context) error {
		pager := p.client.NewListBlobsFlatPager(p.container, &azblob.ListBlobsFlatOptions{
			MaxResults: to.Ptr(int32(1)),
		})
		if !pager.More() {
			return nil
		}
		_, err := pager.NextPage(ctx)
		return containerError(p.container, err)
	}
	if err := retry.Do(ctx, p.retryOptions("azure_container_check", ""), p.isAzRetryable, ensureOnce); err != nil {
		return err
	}
	log.Debug().Str("action", "azure_container_check").Str("container", p.container).
		Dur("elapsed_ms", time.Since(start)).Msg("container access OK")
	return nil
}

// containerError turns well-known access failures into actionable messages
// and leaves other errors untouched so they stay retryable.
func containerError(container string, err error) error {
	if err == nil {
		return nil
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case string(bloberror.ContainerNotFound):
			return errors.Newf("container %q not found: create it first (container SAS cannot create containers)", container)
		case string(bloberror.AuthorizationFailure),
			string(bloberror.AuthorizationPermissionMismatch),
			string(bloberror.AuthenticationFailed):
			return errors.Newf("not authorized for container %q; ensure a container SAS with at least rwl", container)
		}
	}
	return err
}

// validateSizeByList finds the exact blob and returns (found, size).
func (p *Provider) validateSizeByList(ctx context.Context, exactKey string) (bool, int64, error) {
	pager := p.client.NewListBlobsFlatPager(p.container, &azblob.ListBlobsFlatOptions{
		Prefix:     to.Ptr(exactKey),
		MaxResults: to.Ptr(int32(1)),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, 0, err
		}
		for _, it := range page.Segment.BlobItems {
			if it.Name != nil && *it.Name == exactKey {
				if it.Properties != nil && it.Properties.ContentLength != nil {
					return true, *it.Properties.ContentLength, nil
				}
				return true, 0, nil
			}
		}
	}
	return false, 0, nil
}

// isAzRetryable: retry rules for Azure (timeout, 5xx, 429, 408, ServerBusy).
func (p *Provider) isAzRetryable(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		if re.ErrorCode == string(bloberror.ServerBusy) {
			return true
		}
		return retryableStatus(re.StatusCode)
	}
	var he *headStatusError
	if errors.As(err, &he) {
		return retryableStatus(he.StatusCode)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		(code >= 500 && code <= 599)
}

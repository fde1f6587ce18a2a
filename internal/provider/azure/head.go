package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

func defaultHeadClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// blobURL returns the SAS URL of key, escaping each path segment.
func (p *Provider) blobURL(key string) string {
	segs := strings.Split(normalizeKey(key), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return p.endpoint + url.PathEscape(p.container) + "/" + strings.Join(segs, "/") + "?" + p.sas
}

// headSizeAndSHA does a direct HEAD (SAS) to read Content-Length and x-ms-meta-sha256.
func (p *Provider) headSizeAndSHA(ctx context.Context, key string) (int64, string, error) {
	u := p.blobURL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, http.NoBody)
	if err != nil {
		return 0, "", err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Never echo the SAS query string.
		return 0, "", &headStatusError{StatusCode: resp.StatusCode, Status: resp.Status, Key: key}
	}

	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return 0, "", errors.New("missing Content-Length")
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return 0, "", errors.Wrap(err, "parse Content-Length")
	}
	return n, resp.Header.Get("x-ms-meta-sha256"), nil
}

type headStatusError struct {
	StatusCode int
	Status     string
	Key        string
}

func (e *headStatusError) Error() string { return fmt.Sprintf("HEAD %s: %s", e.Key, e.Status) }

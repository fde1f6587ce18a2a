package azure

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/config"
	"github.com/Chapsvision-dev/qdrant-dump/internal/provider"
)

// endpointFor returns the blob service endpoint with a trailing slash.
func endpointFor(c config.AzureConfig) string {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", c.Account)
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}

// Build client from config and capture endpoint/SAS for HEAD validation.
// Priority: 1) SAS  2) Service Principal  3) DefaultAzureCredential.
func newClientFromConfig(c config.AzureConfig) (client *azblob.Client, endpoint, sas string, err error) {
	endpoint = endpointFor(c)

	// 1) SAS
	if sasRaw := strings.TrimSpace(c.SASToken); sasRaw != "" {
		sas = strings.TrimPrefix(sasRaw, "?")
		client, err = azblob.NewClientWithNoCredential(endpoint+"?"+sas, nil)
		return client, endpoint, sas, err
	}

	// 2) Service Principal
	if c.ClientID != "" && c.ClientSecret != "" && c.TenantID != "" {
		cred, err := azidentity.NewClientSecretCredential(c.TenantID, c.ClientID, c.ClientSecret, nil)
		if err != nil {
			return nil, "", "", err
		}
		client, err = azblob.NewClient(endpoint, cred, nil)
		return client, endpoint, "", err
	}

	// 3) Managed Identity / DefaultAzureCredential
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, "", "", err
	}
	client, err = azblob.NewClient(endpoint, cred, nil)
	return client, endpoint, "", err
}

func init() {
	provider.Register("azure", func(cfg any) (provider.Provider, error) {
		c, ok := cfg.(config.Config)
		if !ok {
			return nil, errors.Newf("azure: invalid config type %T", cfg)
		}
		client, endpoint, sas, err := newClientFromConfig(c.Azure)
		if err != nil {
			return nil, errors.Wrap(err, "azure")
		}
		log.Debug().
			Str("action", "provider_new").
			Str("provider", "azure").
			Str("account", c.Azure.Account).
			Str("container", c.Azure.Container).
			Bool("sas", sas != "").
			Msg("provider ready")
		return &Provider{
			client:    client,
			container: c.Azure.Container,
			endpoint:  endpoint,
			sas:       sas,
			http:      defaultHeadClient(),
			ro:        c.RetryOptions(),
		}, nil
	})
}

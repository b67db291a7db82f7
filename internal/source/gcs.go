package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/ahrav/pbcheck/internal/ports"
	"github.com/ahrav/pbcheck/internal/report"
)

var _ ports.Source = (*GCS)(nil)

// GCSConfig configures a Cloud Storage source.
type GCSConfig struct {
	Bucket string
	// Prefix is stripped from object names; patterns match the rest.
	Prefix string
	// Endpoint overrides the API endpoint, e.g. for an emulator.
	Endpoint string
	// Anonymous skips credentials.
	Anonymous bool
	// RequestsPerSecond limits API calls; zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// GCS serves the objects of a bucket prefix. Every API call waits on a
// token bucket so large batches stay within request quotas.
type GCS struct {
	svc     *storage.Service
	bucket  string
	prefix  string
	limiter *rate.Limiter
}

// NewGCS creates a Cloud Storage source. opts are passed to the storage
// client after the ones derived from cfg.
func NewGCS(ctx context.Context, cfg GCSConfig, opts ...option.ClientOption) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Anonymous {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := storage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, ports.NewSourceError("gs://"+cfg.Bucket, "", "NewService", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &GCS{
		svc:     svc,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
	}, nil
}

// List returns the object names under the prefix, relative to it, that
// match pattern, in natural order.
func (g *GCS) List(ctx context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, ports.NewSourceError(g.String(), "", "List", err)
	}

	var names []string
	call := g.svc.Objects.List(g.bucket).Prefix(g.prefix).Fields("items(name),nextPageToken")
	err := call.Pages(ctx, func(page *storage.Objects) error {
		for _, obj := range page.Items {
			rel := strings.TrimPrefix(obj.Name, g.prefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			if ok, _ := path.Match(pattern, rel); ok {
				names = append(names, rel)
			}
		}
		// Pages fetches the next page after this returns.
		return g.limiter.Wait(ctx)
	})
	if err != nil {
		return nil, ports.NewSourceError(g.String(), "", "List", err)
	}

	report.SortNatural(names)
	return names, nil
}

// Open downloads a listed object.
func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, ports.NewSourceError(g.String(), name, "Open", err)
	}

	resp, err := g.svc.Objects.Get(g.bucket, g.prefix+name).Context(ctx).Download()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			err = ports.ErrObjectNotFound
		}
		return nil, ports.NewSourceError(g.String(), name, "Open", err)
	}
	return resp.Body, nil
}

// String returns gs://bucket/prefix.
func (g *GCS) String() string { return "gs://" + g.bucket + "/" + g.prefix }

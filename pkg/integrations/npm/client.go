package npm

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/ossinventory/pkg/cache"
	errs "github.com/matzehuels/ossinventory/pkg/errors"
	"github.com/matzehuels/ossinventory/pkg/httputil"
	"github.com/matzehuels/ossinventory/pkg/observability"
)

// DefaultURLTemplate is the public npm registry version endpoint.
const DefaultURLTemplate = "https://registry.npmjs.org/{package}/{version}"

// Metadata is the subset of a registry version document needed for an
// inventory record. License and Homepage are "" when the registry omits them.
type Metadata struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	ArchiveURL string `json:"archive_url"`
	MetaURL    string `json:"meta_url"`
	License    string `json:"license"`
	Homepage   string `json:"homepage"`
}

type Client struct {
	http     *httputil.Client
	template string
	cache    cache.Cache
	cacheTTL time.Duration
	cached   bool
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the shared HTTP client.
func WithHTTPClient(h *httputil.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithURLTemplate overrides the lookup URL. The template must contain the
// {package} and {version} placeholders.
func WithURLTemplate(tmpl string) Option {
	return func(c *Client) {
		if tmpl != "" {
			c.template = tmpl
		}
	}
}

// WithCache stores resolved metadata in ch for ttl.
func WithCache(ch cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		if ch != nil {
			c.cache = ch
			c.cacheTTL = ttl
			c.cached = true
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     httputil.NewClient(),
		template: DefaultURLTemplate,
		cache:    cache.NewNullCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MetaURL substitutes name and version into the lookup template. The version
// is path-escaped; name is expected to have passed
// errors.ValidateNpmPackageName, which keeps the scope separator intact.
func (c *Client) MetaURL(name, version string) string {
	return strings.NewReplacer("{package}", name, "{version}", url.PathEscape(version)).Replace(c.template)
}

// Resolve looks up one package version.
//
// Failures are *errors.Error values: RESOLUTION_FAILED for names or versions
// that are not safe to put in a URL (no request is made), transport errors
// and non-success statuses (the status code is recoverable with
// httputil.StatusCode), DESERIALIZATION_FAILED for bodies that are not a
// usable version document.
func (c *Client) Resolve(ctx context.Context, name, version string) (*Metadata, error) {
	if err := errs.ValidateNpmPackageName(name); err != nil {
		return nil, errs.Wrap(errs.ErrCodeResolution, err, "resolve %s@%s", name, version)
	}
	if err := errs.ValidateVersion(version); err != nil {
		return nil, errs.Wrap(errs.ErrCodeResolution, err, "resolve %s@%s", name, version)
	}

	metaURL := c.MetaURL(name, version)
	key := cache.MetadataKey("npm", name, version)

	if m, ok := c.fromCache(ctx, key); ok {
		return m, nil
	}

	var doc versionDocument
	if err := c.http.GetJSON(ctx, metaURL, &doc); err != nil {
		if errors.Is(err, httputil.ErrDecode) {
			return nil, errs.Wrap(errs.ErrCodeDeserialization, err, "decode metadata for %s@%s", name, version)
		}
		return nil, errs.Wrap(errs.ErrCodeResolution, err, "resolve %s@%s", name, version)
	}

	if doc.Dist.Tarball == "" {
		return nil, errs.New(errs.ErrCodeDeserialization, "metadata for %s@%s has no dist.tarball", name, version)
	}

	m := &Metadata{
		Name:       name,
		Version:    doc.Version,
		ArchiveURL: doc.Dist.Tarball,
		MetaURL:    metaURL,
		License:    doc.license(),
		Homepage:   doc.Homepage,
	}
	if m.Version == "" {
		m.Version = version
	}

	c.toCache(ctx, key, m)
	return m, nil
}

func (c *Client) fromCache(ctx context.Context, key string) (*Metadata, bool) {
	if !c.cached {
		return nil, false
	}
	data, hit, err := c.cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "metadata")
		return nil, false
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		observability.Cache().OnCacheMiss(ctx, "metadata")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "metadata")
	return &m, true
}

func (c *Client) toCache(ctx context.Context, key string, m *Metadata) {
	if !c.cached {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if c.cache.Set(ctx, key, data, c.cacheTTL) == nil {
		observability.Cache().OnCacheSet(ctx, "metadata", len(data))
	}
}

type versionDocument struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	License  any    `json:"license"`
	Licenses []any  `json:"licenses"`
	Homepage string `json:"homepage"`
	Dist     struct {
		Tarball string `json:"tarball"`
	} `json:"dist"`
}

// license prefers the modern "license" field (a string, or a legacy
// {"type": ...} object) and falls back to the deprecated "licenses" array.
func (d versionDocument) license() string {
	if s := extractField(d.License, "type"); s != "" {
		return s
	}
	var types []string
	for _, l := range d.Licenses {
		if s := extractField(l, "type"); s != "" {
			types = append(types, s)
		}
	}
	return strings.Join(types, " OR ")
}

func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

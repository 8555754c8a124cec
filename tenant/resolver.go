package tenant

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/nexdesk/nexdesk"
)

// Resolver extracts a tenant candidate from an inbound request and
// resolves it against the catalog.
//
// Signals are tried in strict precedence order, first non-empty wins:
//
//  1. the explicit tenant header
//  2. the explicit tenant query parameter
//  3. a "/t/<tenant>/" path prefix
//  4. the host name (forwarded host preferred when present)
type Resolver struct {
	catalog    Catalog
	header     string
	param      string
	baseDomain string
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHeader sets the header carrying an explicit tenant key.
func WithHeader(name string) Option {
	return func(r *Resolver) { r.header = name }
}

// WithParam sets the query parameter carrying an explicit tenant key.
func WithParam(name string) Option {
	return func(r *Resolver) { r.param = name }
}

// WithBaseDomain sets the suffix stripped from the host to obtain the
// subdomain. When unset, the first label of a host with three or more
// labels is used instead.
func WithBaseDomain(domain string) Option {
	return func(r *Resolver) { r.baseDomain = strings.ToLower(strings.Trim(domain, ".")) }
}

// WithLogger sets the logger for the Resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a Resolver backed by the given catalog.
func NewResolver(catalog Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog: catalog,
		header:  "X-Tenant",
		param:   "tenant",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the tenant binding for the request.
//
// Returns nexdesk.ErrNoTenantSignal when no signal yields a candidate,
// nexdesk.ErrTenantNotFound when the candidate is not in the catalog,
// and nexdesk.ErrCatalogMissing when the catalog table is absent.
// Resolution never touches any tenant partition.
func (r *Resolver) Resolve(req *http.Request) (Binding, error) {
	candidate := r.candidate(req)
	if candidate == "" {
		return Binding{}, nexdesk.ErrNoTenantSignal
	}
	candidate = strings.ToLower(candidate)

	rec, err := r.catalog.Lookup(req.Context(), candidate)
	if err != nil {
		return Binding{}, fmt.Errorf("resolve tenant %q: %w", candidate, err)
	}

	r.logger.Debug("tenant resolved",
		slog.String("subdomain", rec.Subdomain),
		slog.String("partition", rec.Partition),
	)

	return Binding{
		Subdomain: rec.Subdomain,
		Partition: rec.Partition,
		TenantID:  rec.TenantID,
	}, nil
}

// candidate returns the first non-empty tenant signal.
func (r *Resolver) candidate(req *http.Request) string {
	if v := strings.TrimSpace(req.Header.Get(r.header)); v != "" {
		return v
	}
	if v := strings.TrimSpace(req.URL.Query().Get(r.param)); v != "" {
		return v
	}
	if v, _, ok := SplitPathPrefix(req.URL.Path); ok {
		return v
	}
	return r.hostCandidate(req)
}

// SplitPathPrefix splits a "/t/<tenant>/rest" path into the tenant
// label and the remaining path (leading slash preserved). The prefix
// must carry a non-empty label. A bare "/t/<tenant>" maps to rest "/".
func SplitPathPrefix(path string) (candidate, rest string, ok bool) {
	const prefix = "/t/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	remainder := path[len(prefix):]
	if remainder == "" {
		return "", "", false
	}
	candidate, rest, found := strings.Cut(remainder, "/")
	if candidate == "" {
		return "", "", false
	}
	if !found {
		return candidate, "/", true
	}
	return candidate, "/" + rest, true
}

// hostCandidate extracts a subdomain from the request host. Forwarded
// hosts win over the direct Host value; IP literals and localhost
// yield nothing.
func (r *Resolver) hostCandidate(req *http.Request) string {
	host := req.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = req.Host
	}
	if host == "" {
		return ""
	}
	// Multiple proxies may append comma-separated values.
	if i := strings.IndexByte(host, ','); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, ".")

	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}

	labels := strings.Split(host, ".")
	if labels[0] == "www" {
		labels = labels[1:]
		host = strings.Join(labels, ".")
	}

	if r.baseDomain != "" {
		sub, found := strings.CutSuffix(host, "."+r.baseDomain)
		if !found || sub == "" {
			return ""
		}
		return sub
	}

	// No base domain configured: treat the first label of a host with
	// at least three labels as the subdomain.
	if len(labels) < 3 {
		return ""
	}
	return labels[0]
}

// Package secrets resolves secret:// references against Google Secret
// Manager, with an in-process cache and a local fallback file for
// development machines without cloud credentials.
package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	defaultVersion      = "latest"
	meterName           = "github.com/auric-atelier/api/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret references. Values are cached for the process
// lifetime; rotating a secret requires a restart.
type Fetcher struct {
	client     accessClient
	ownsClient bool
	logger     *zap.Logger
	env        string
	projectID  string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string

	latency        metric.Float64Histogram
	latencyEnabled bool
}

type fetcherConfig struct {
	logger       *zap.Logger
	env          string
	projectID    string
	fallbackPath string
	client       accessClient
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithEnvironment labels metrics and log output with the deployment
// environment.
func WithEnvironment(env string) Option {
	return func(cfg *fetcherConfig) {
		cfg.env = strings.ToLower(strings.TrimSpace(env))
	}
}

// WithDefaultProject sets the project used when a reference carries no
// explicit project query parameter.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the local fallback secrets file path.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithSecretManagerClient injects a preconfigured client, primarily for tests.
func WithSecretManagerClient(client accessClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards Cloud client options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher builds a Fetcher. A missing Secret Manager client is not fatal:
// the fetcher then serves only from the fallback file.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		env:          defaultEnvironment,
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.env == "" {
		cfg.env = defaultEnvironment
	}

	latency, latencyErr := otel.GetMeterProvider().Meter(meterName).Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret resolution attempts"),
	)
	if latencyErr != nil {
		cfg.logger.Warn("secrets: latency metric unavailable", zap.Error(latencyErr))
	}

	f := &Fetcher{
		logger:         cfg.logger,
		env:            cfg.env,
		projectID:      cfg.projectID,
		fallbackPath:   cfg.fallbackPath,
		cache:          make(map[string]string),
		latency:        latency,
		latencyEnabled: latencyErr == nil,
	}

	if cfg.client != nil {
		f.client = cfg.client
		return f, nil
	}
	client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
	if err != nil {
		cfg.logger.Warn("secrets: secret manager unavailable; using fallback file only", zap.Error(err))
		return f, nil
	}
	f.client = client
	f.ownsClient = true
	return f, nil
}

// Close releases the Secret Manager client when the fetcher owns it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the secret value for a secret://name[?version=N&project=P]
// reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	key := parsed.cacheKey()
	if value, ok := f.cached(key); ok {
		f.observe(ctx, start, "cache")
		return value, nil
	}

	projectID := parsed.project
	if projectID == "" {
		projectID = f.projectID
	}

	if projectID != "" && f.client != nil {
		value, err := f.access(ctx, projectID, parsed)
		if err == nil {
			f.remember(key, value)
			f.observe(ctx, start, "remote")
			return value, nil
		}
		if !credentialProblem(err) {
			f.observe(ctx, start, "error")
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.canonical, err)
		}
		f.logger.Debug("secrets: remote fetch unavailable, trying fallback file",
			zap.String("ref", parsed.canonical), zap.String("env", f.env), zap.Error(err))
	}

	value, ok := f.fallback(parsed)
	if !ok {
		f.observe(ctx, start, "error")
		return "", fmt.Errorf("secrets: fallback value not found for %s", parsed.canonical)
	}
	f.remember(key, value)
	f.observe(ctx, start, "fallback")
	return value, nil
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := f.cache[key]
	return value, ok
}

func (f *Fetcher) remember(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
}

func (f *Fetcher) access(ctx context.Context, projectID string, ref reference) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, ref.name, ref.version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", name)
	}
	return string(resp.Payload.GetData()), nil
}

// fallback consults the local secrets file, keyed by canonical reference with
// an optional #version suffix.
func (f *Fetcher) fallback(ref reference) (string, bool) {
	f.fallbackOnce.Do(f.loadFallbackFile)
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback file unreadable", zap.Error(f.fallbackErr))
		return "", false
	}
	if value, ok := f.fallbackVals[ref.cacheKey()]; ok {
		return value, true
	}
	value, ok := f.fallbackVals[ref.canonical]
	return value, ok
}

func (f *Fetcher) loadFallbackFile() {
	f.fallbackVals = map[string]string{}

	path := strings.TrimSpace(f.fallbackPath)
	if path == "" {
		return
	}
	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.fallbackErr = fmt.Errorf("secrets: open fallback file %s: %w", path, err)
		}
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = normaliseScheme(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		parsed, err := parseReference(key)
		if err != nil {
			f.fallbackVals[key] = value
			continue
		}
		f.fallbackVals[parsed.canonical] = value
		f.fallbackVals[parsed.cacheKey()] = value
	}
	if err := scanner.Err(); err != nil {
		f.fallbackErr = fmt.Errorf("secrets: read fallback file %s: %w", path, err)
	}
}

func (f *Fetcher) observe(ctx context.Context, start time.Time, source string) {
	if !f.latencyEnabled {
		return
	}
	f.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond),
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("env", f.env),
		))
}

type reference struct {
	canonical string
	name      string
	version   string
	project   string
}

func (r reference) cacheKey() string {
	return r.canonical + "#" + r.version
}

func parseReference(ref string) (reference, error) {
	if strings.TrimSpace(ref) == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(strings.TrimPrefix(u.Host+u.Path, "/"), "/")
	if name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = defaultVersion
	}

	return reference{
		canonical: canonical.String(),
		name:      name,
		version:   version,
		project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

// normaliseScheme accepts the sm:// spelling some tooling emits.
func normaliseScheme(value string) string {
	if rest, found := strings.CutPrefix(value, "sm://"); found {
		return "secret://" + rest
	}
	return value
}

// credentialProblem reports errors where the local fallback file is an
// acceptable substitute. A NotFound from Secret Manager is authoritative and
// must not be papered over.
func credentialProblem(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

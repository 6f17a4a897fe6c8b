package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/auric-atelier/api/internal/platform/config"
)

const (
	dialTimeout        = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"
)

// ErrProviderClosed is returned once Close has been called.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider hands out a lazily dialled, shared Firestore client.
type Provider struct {
	cfg config.FirestoreConfig

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// NewProvider constructs a Provider from configuration. No connection is made
// until the first Client call.
func NewProvider(cfg config.FirestoreConfig) *Provider {
	return &Provider{cfg: cfg}
}

// Client returns the shared client, dialling it on first use. Concurrent
// callers during the first dial wait for it to finish.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	if ctx == nil {
		return nil, errors.New("firestore: context is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.client != nil {
		return p.client, nil
	}

	client, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

func (p *Provider) dial(ctx context.Context) (*firestore.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	projectID := strings.TrimSpace(p.cfg.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(os.Getenv(envGoogleProjectID))
	}
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	var opts []option.ClientOption
	if host := p.emulatorHost(); host != "" {
		if os.Getenv(envEmulatorHost) == "" {
			_ = os.Setenv(envEmulatorHost, host)
		}
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	return client, nil
}

// Close releases the client. The provider cannot be reused afterwards.
func (p *Provider) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- client.Close()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// RunTransaction executes fn inside a Firestore transaction on the shared client.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, client, fn, opts...)
}

func (p *Provider) emulatorHost() string {
	if trimmed := strings.TrimSpace(p.cfg.EmulatorHost); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(os.Getenv(envEmulatorHost))
}

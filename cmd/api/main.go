package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/auric-atelier/api/internal/di"
	"github.com/auric-atelier/api/internal/handlers"
	"github.com/auric-atelier/api/internal/platform/auth"
	"github.com/auric-atelier/api/internal/platform/config"
	"github.com/auric-atelier/api/internal/platform/events"
	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
	"github.com/auric-atelier/api/internal/platform/idempotency"
	"github.com/auric-atelier/api/internal/platform/mail"
	"github.com/auric-atelier/api/internal/platform/observability"
	"github.com/auric-atelier/api/internal/platform/secrets"
	platformstorage "github.com/auric-atelier/api/internal/platform/storage"
	"github.com/auric-atelier/api/internal/repositories"
	firestoreRepo "github.com/auric-atelier/api/internal/repositories/firestore"
	"github.com/auric-atelier/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	healthRepo, err := newHealthRepository(firestoreClient, fetcher)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	var proofArchiver services.PaymentProofArchiver
	if archiver, err := platformstorage.NewProofArchiver(storageClient); err != nil {
		logger.Warn("proof archiver unavailable", zap.Error(err))
	} else {
		proofArchiver = &proofArchiveAdapter{
			archiver: archiver,
			bucket:   cfg.Storage.ProofsBucket,
		}
	}

	proofLinker := newProofLinker(logger, cfg)

	var sender mail.Sender
	if strings.TrimSpace(cfg.Mail.SMTPHost) != "" {
		smtpSender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:        cfg.Mail.SMTPHost,
			Port:        cfg.Mail.SMTPPort,
			Username:    cfg.Mail.Username,
			Password:    cfg.Mail.Password,
			FromAddress: cfg.Mail.FromAddress,
			FromName:    cfg.Mail.FromName,
			SendTimeout: cfg.Mail.SendTimeout,
		})
		if err != nil {
			logger.Fatal("failed to initialise smtp sender", zap.Error(err))
		}
		sender = smtpSender
	} else {
		logger.Warn("mail transport not configured; outbound email disabled")
	}

	var publisher events.Publisher
	if topicName := strings.TrimSpace(cfg.Events.OrderTopic); topicName != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err = events.NewPubSubPublisher(pubsubClient.Topic(topicName))
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
	} else {
		logger.Warn("order event topic not configured; event publishing disabled")
	}

	container, err := di.NewContainer(cfg, registry, di.Infrastructure{
		Sender:        sender,
		Events:        publisher,
		ProofArchiver: proofArchiver,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	adminVerifier, err := auth.NewAdminVerifier(cfg.Security.AdminJWTSecret, auth.WithAdminIssuer(cfg.Security.AdminJWTIssuer))
	if err != nil {
		logger.Fatal("failed to initialise admin verifier", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.Purge(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Fulfillment, idempotencyMiddleware)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(container.Services.Fulfillment, proofLinker, eventLogger(logger.Named("admin")))
	notificationHandlers := handlers.NewAdminNotificationHandlers(container.Services.Notifications)
	settingsHandlers := handlers.NewAdminSettingsHandlers(container.Services.Settings, container.Services.Templates)
	broadcastHandlers := handlers.NewAdminBroadcastHandlers(container.Services.Mail)
	mailQueueHandlers := handlers.NewAdminMailQueueHandlers(container.Services.Mail)

	adminRegistrar := func(r chi.Router) {
		adminOrderHandlers.Routes(r)
		notificationHandlers.Routes(r)
		settingsHandlers.Routes(r)
		broadcastHandlers.Routes(r)
		mailQueueHandlers.Routes(r)
	}

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthRepo)),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(adminRegistrar),
		handlers.WithAdminMiddlewares(adminVerifier.RequireAdminJWT()),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("auric atelier api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}

func newHealthRepository(client *firestore.Client, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

// proofArchiveAdapter bridges the storage archiver into the fulfillment service.
type proofArchiveAdapter struct {
	archiver *platformstorage.ProofArchiver
	bucket   string
}

func (a *proofArchiveAdapter) ArchiveProof(ctx context.Context, orderID, proofRef string) error {
	if a == nil || a.archiver == nil {
		return errors.New("proof archiver not configured")
	}
	ref, err := platformstorage.ParseProofRef(proofRef, a.bucket)
	if err != nil {
		return err
	}
	dest, err := platformstorage.ArchiveProofObjectPath(orderID, path.Base(ref.Object))
	if err != nil {
		return err
	}
	return a.archiver.Archive(ctx, ref, dest)
}

// proofLinkAdapter produces short-lived signed download URLs for the admin dashboard.
type proofLinkAdapter struct {
	client *platformstorage.Client
	bucket string
	ttl    time.Duration
}

func (p *proofLinkAdapter) ProofDownloadURL(ctx context.Context, proofRef string) (string, time.Time, error) {
	if p == nil || p.client == nil {
		return "", time.Time{}, errors.New("proof link signer not configured")
	}
	ref, err := platformstorage.ParseProofRef(proofRef, p.bucket)
	if err != nil {
		return "", time.Time{}, err
	}
	result, err := p.client.DownloadURL(ctx, ref.Bucket, ref.Object, platformstorage.DownloadOptions{
		ExpiresIn: p.ttl,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return result.URL, result.ExpiresAt, nil
}

// newProofLinker builds the signed URL adapter when signing credentials exist.
// Admin order payloads simply omit the download link otherwise.
func newProofLinker(logger *zap.Logger, cfg config.Config) handlers.ProofLinker {
	credentialsFile := strings.TrimSpace(cfg.Firebase.CredentialsFile)
	if credentialsFile == "" {
		logger.Warn("storage signer credentials not configured; proof download links disabled")
		return nil
	}
	signer, err := platformstorage.NewServiceAccountSignerFromFile(credentialsFile)
	if err != nil {
		logger.Warn("failed to load storage signer key; proof download links disabled", zap.Error(err))
		return nil
	}
	client, err := platformstorage.NewClient(signer)
	if err != nil {
		logger.Warn("failed to initialise signed url client; proof download links disabled", zap.Error(err))
		return nil
	}
	return &proofLinkAdapter{
		client: client,
		bucket: cfg.Storage.ProofsBucket,
		ttl:    cfg.Storage.ProofURLTTL,
	}
}

func eventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info(event, zFields...)
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

// requiredSecretNames maps secret-reference env values to the config fields
// the loader records, so startup fails fast when a referenced secret is gone.
func requiredSecretNames(env map[string]string) []string {
	refs := map[string]string{
		"API_MAIL_PASSWORD":             "Mail.Password",
		"API_SECURITY_ADMIN_JWT_SECRET": "Security.AdminJWTSecret",
	}
	var required []string
	for envKey, fieldName := range refs {
		value := strings.TrimSpace(env[envKey])
		if strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://") {
			required = append(required, fieldName)
		}
	}
	return required
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

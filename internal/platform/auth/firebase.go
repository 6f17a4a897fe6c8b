package auth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/auric-atelier/api/internal/platform/config"
)

// FirebaseVerifier adapts the Firebase Admin SDK to the TokenVerifier and
// UserGetter seams.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier initialises the Admin SDK for the configured project.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// VerifyIDToken implements TokenVerifier.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	return v.client.VerifyIDToken(ctx, idToken)
}

// GetUser implements UserGetter.
func (v *FirebaseVerifier) GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	return v.client.GetUser(ctx, uid)
}

// Package roles decides which side of the marketplace a verified identity
// acts on. It only reads.
package roles

import (
	"context"
	"errors"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/auth"
	"prontoapp/backend/internal/models"
)

// TokenVerifier checks a bearer token with the auth collaborator.
type TokenVerifier interface {
	Verify(token string) (auth.Verified, error)
}

// IdentityStore looks identities up by email.
type IdentityStore interface {
	GetProviderByEmail(ctx context.Context, email string) (*models.Provider, error)
	GetRequesterByEmail(ctx context.Context, email string) (*models.Requester, error)
}

type Resolver struct {
	verifier TokenVerifier
	store    IdentityStore
}

func NewResolver(verifier TokenVerifier, store IdentityStore) *Resolver {
	return &Resolver{verifier: verifier, store: store}
}

// Resolve verifies token and resolves the identity it names.
func (r *Resolver) Resolve(ctx context.Context, token string) (models.Identity, error) {
	verified, err := r.verifier.Verify(token)
	if err != nil {
		if !errors.Is(err, apperr.ErrAuth) {
			err = apperr.Wrap(apperr.ErrAuth, err, "identity could not be verified")
		}
		return models.Identity{}, err
	}
	return r.ResolveEmail(ctx, verified.Email)
}

// ResolveEmail looks the email up among providers first, then requesters.
// An email found in neither resolves to RoleNone.
func (r *Resolver) ResolveEmail(ctx context.Context, email string) (models.Identity, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return models.Identity{}, apperr.New(apperr.ErrAuth, "empty identity")
	}

	provider, err := r.store.GetProviderByEmail(ctx, email)
	switch {
	case err == nil:
		return models.Identity{Email: email, Role: models.RoleProvider, Provider: provider}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return models.Identity{}, err
	}

	requester, err := r.store.GetRequesterByEmail(ctx, email)
	switch {
	case err == nil:
		return models.Identity{Email: email, Role: models.RoleRequester, Requester: requester}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return models.Identity{}, err
	}

	return models.Identity{Email: email, Role: models.RoleNone}, nil
}

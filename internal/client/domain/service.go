package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClientNotFound     = errors.New("client_not_found")
	ErrClientExists       = errors.New("client_exists")
	ErrInvalidDisplayName = errors.New("invalid_display_name")
	ErrInvalidSecret      = errors.New("invalid_secret")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*SecretResponse, error)
	Get(ctx context.Context, clientID string) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	Delete(ctx context.Context, clientID string) error
	// Authenticate resolves and verifies a confidential client by id and
	// secret. Public clients authenticate by id alone with an empty secret.
	Authenticate(ctx context.Context, clientID, secret string) (*RegisteredClient, error)
	// Resolve loads a client without secret verification, for flows that
	// authenticate some other way (authorize redirect, gateway serving).
	Resolve(ctx context.Context, clientID string) (*RegisteredClient, error)
}

type RegisterRequest struct {
	DisplayName  string   `json:"display_name"`
	Scopes       []string `json:"scopes"`
	GrantTypes   []string `json:"grant_types"`
	RedirectURIs []string `json:"redirect_uris"`
	Public       bool     `json:"public"`
}

type SecretResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type Response struct {
	ClientID     string    `json:"client_id"`
	DisplayName  string    `json:"display_name"`
	Scopes       []string  `json:"scopes"`
	GrantTypes   []string  `json:"grant_types"`
	RedirectURIs []string  `json:"redirect_uris"`
	Public       bool      `json:"public"`
	CreatedAt    time.Time `json:"created_at"`
}

// RemovalPublisher notifies the cleanup pipeline that a client was deleted.
type RemovalPublisher interface {
	PublishClientRemoved(ctx context.Context, clientID string) error
}

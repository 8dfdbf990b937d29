package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Google publishes ID tokens under two issuer spellings.
const (
	GoogleIssuer       = "https://accounts.google.com"
	googleLegacyIssuer = "accounts.google.com"
	GoogleJWKSURL      = "https://www.googleapis.com/oauth2/v3/certs"
)

var (
	// ErrFederatedNotConfigured means no client id was configured.
	ErrFederatedNotConfigured = errors.New("auth: federated sign-in is not configured")
	// ErrIdentityTokenInvalid covers signature, audience, issuer and expiry failures.
	ErrIdentityTokenInvalid = errors.New("auth: identity token invalid")
)

// FederatedIdentity is what Soundscape needs from a verified ID token.
type FederatedIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// GoogleConfig configures GoogleProvider. Issuer, JWKSURL and TokenURL
// default to Google's public endpoints; tests point them at httptest servers.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string // only needed for the authorization-code flow
	RedirectURL  string
	Issuer       string
	JWKSURL      string
	TokenURL     string
	HTTPClient   *http.Client
}

// GoogleProvider verifies Google ID tokens against Google's published keys.
//
// Two entry points exist: VerifyIDToken for the browser "credential" flow
// (the client already holds an ID token) and Exchange for the
// authorization-code flow, which trades a code for tokens first.
type GoogleProvider struct {
	clientID  string
	verifiers []*rp.IDTokenVerifier
	oauth     *oauth2.Config
	client    *http.Client
}

// NewGoogleProvider returns ErrFederatedNotConfigured when ClientID is empty.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" {
		return nil, ErrFederatedNotConfigured
	}
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = GoogleJWKSURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	// The key set caches fetched keys; share it between issuer variants.
	keySet := rp.NewRemoteKeySet(cfg.HTTPClient, cfg.JWKSURL)
	noNonce := rp.WithNonce(func(context.Context) string { return "" })

	issuers := []string{cfg.Issuer}
	if cfg.Issuer == GoogleIssuer {
		issuers = append(issuers, googleLegacyIssuer)
	}
	verifiers := make([]*rp.IDTokenVerifier, 0, len(issuers))
	for _, iss := range issuers {
		verifiers = append(verifiers, rp.NewIDTokenVerifier(iss, cfg.ClientID, keySet, noNonce))
	}

	p := &GoogleProvider{
		clientID:  cfg.ClientID,
		verifiers: verifiers,
		client:    cfg.HTTPClient,
	}

	if cfg.ClientSecret != "" {
		endpoint := endpoints.Google
		if cfg.TokenURL != "" {
			endpoint.TokenURL = cfg.TokenURL
		}
		p.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, oidc.ScopeEmail, oidc.ScopeProfile},
			Endpoint:     endpoint,
		}
	}

	return p, nil
}

// VerifyIDToken checks signature, issuer, audience and expiry of an ID token
// and extracts the identity.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, idToken string) (*FederatedIdentity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrIdentityTokenInvalid)
	}

	var firstErr error
	for _, v := range p.verifiers {
		claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, idToken, v)
		if err == nil {
			return &FederatedIdentity{
				Subject:       claims.Subject,
				Email:         claims.Email,
				Name:          claims.Name,
				EmailVerified: bool(claims.EmailVerified),
			}, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrIdentityTokenInvalid, firstErr)
}

// CanExchange reports whether the authorization-code flow is available.
func (p *GoogleProvider) CanExchange() bool {
	return p.oauth != nil
}

// Exchange trades an authorization code for tokens and verifies the returned
// ID token exactly like VerifyIDToken.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*FederatedIdentity, error) {
	if p.oauth == nil {
		return nil, ErrFederatedNotConfigured
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging code: %w", ErrIdentityTokenInvalid, err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrIdentityTokenInvalid)
	}
	return p.VerifyIDToken(ctx, idToken)
}

package domain

import "errors"

var (
	ErrInvalidDomain         = errors.New("invalid shop domain")
	ErrMissingParameters     = errors.New("missing required OAuth parameters")
	ErrMissingHeaders        = errors.New("missing required webhook headers")
	ErrInvalidSignature      = errors.New("invalid HMAC signature")
	ErrInvalidOrExpiredState = errors.New("invalid or expired OAuth state")
	ErrTokenExchangeFailed   = errors.New("token exchange failed")
	ErrInstallationFailed    = errors.New("installation failed")
	ErrInvalidPayload        = errors.New("invalid JSON payload")
	ErrStorageFailure        = errors.New("storage failure")

	ErrShopNotFound        = errors.New("shop not found or not installed")
	ErrCredentialRevoked   = errors.New("no access token available for this shop")
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrInvalidSettings     = errors.New("invalid settings payload")
	ErrInvalidQuery        = errors.New("invalid query parameter")
	ErrUpstreamTimeout     = errors.New("upstream request timed out")
	ErrUpstreamFailure     = errors.New("upstream request failed")
)

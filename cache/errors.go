package cache

import goerrors "github.com/goliatone/go-errors"

// Sentinel errors for key derivation and store construction.
var (
	ErrEmptyKey       = goerrors.New("cache: key tuple is empty", goerrors.CategoryValidation)
	ErrInvalidKey     = goerrors.New("cache: key tuple must start with an endpoint string free of the key separator", goerrors.CategoryValidation)
	ErrUnknownBackend = goerrors.New("cache: unknown store backend", goerrors.CategoryValidation)
)

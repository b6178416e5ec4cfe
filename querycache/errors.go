package querycache

import goerrors "github.com/goliatone/go-errors"

var (
	// ErrNotInitialized is returned by every call that needs a store before
	// Initialize attached one.
	ErrNotInitialized = goerrors.New("querycache: client used before Initialize", goerrors.CategoryInternal)
	// ErrNilStore is returned when Initialize receives a nil store.
	ErrNilStore = goerrors.New("querycache: store is nil", goerrors.CategoryValidation)
	// ErrNilFunc is returned when a query or mutation is built without a function.
	ErrNilFunc = goerrors.New("querycache: query or mutation function is nil", goerrors.CategoryValidation)
	// ErrClosed is returned by observers after Close.
	ErrClosed = goerrors.New("querycache: observer is closed", goerrors.CategoryInternal)

	ErrEndpointExists   = goerrors.New("querycache: endpoint already registered", goerrors.CategoryValidation)
	ErrEndpointNotFound = goerrors.New("querycache: endpoint not registered", goerrors.CategoryValidation)
	ErrEndpointType     = goerrors.New("querycache: endpoint registered with a different type", goerrors.CategoryValidation)
)

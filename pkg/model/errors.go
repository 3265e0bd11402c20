package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrModelNotInitialized means an embedding or sentiment handle is missing
	ErrModelNotInitialized = goerr.New("model not initialized")
	// ErrStoreNotInitialized means a store client was not configured
	ErrStoreNotInitialized = goerr.New("store not initialized")
	// ErrRecordNotFound means the status update target does not exist
	ErrRecordNotFound = goerr.New("record not found")
	// ErrInvalidIdentifier means the response_id can not be used as a store key
	ErrInvalidIdentifier = goerr.New("invalid identifier")
	// ErrRemoteWrite means a write to a remote sink failed
	ErrRemoteWrite = goerr.New("remote write failure")

	ErrInvalidRequest   = goerr.New("invalid analysis request")
	ErrInvalidWeights   = goerr.New("invalid weights")
	ErrDuplicateHistory = goerr.New("duplicate history row")
	ErrInvalidConfig    = goerr.New("invalid config")
)

var (
	TagStore      = goerr.NewTag("store")
	TagExtraction = goerr.NewTag("extraction")
)

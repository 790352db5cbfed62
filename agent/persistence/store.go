package persistence

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeNone     StoreType = "none"
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
)

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store. Shared connections are left open.
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

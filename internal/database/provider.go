package database

import (
	"fmt"
)

var (
	activeStore      func() PhotoStore
	storeDriver      string
	storeInitialized bool
)

// RegisterStore registers the active storage backend constructor.
// This is called by the postgres and mysql packages to avoid import cycles.
func RegisterStore(driver string, store func() PhotoStore) {
	activeStore = store
	storeDriver = driver
	storeInitialized = true
}

// Active returns the registered photo store, or nil when persistence is off.
// Callers treat nil as "memory only" and skip mirroring writes.
func Active() PhotoStore {
	if activeStore == nil {
		return nil
	}
	return activeStore()
}

// Driver returns the name of the registered backend (postgres, mysql).
func Driver() string {
	return storeDriver
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	return storeInitialized
}

// GetStore returns the registered photo store or an error when persistence
// is not configured. Used by paths that require a backend.
func GetStore() (PhotoStore, error) {
	if !storeInitialized || activeStore == nil {
		return nil, fmt.Errorf("storage backend not initialized: DATABASE_URL is required")
	}
	return activeStore(), nil
}

package models

import (
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
)

const (
	CacheKeyInventory = "inventory_view"
	CacheKeyUsers     = "users_map"
)

// The cache is deliberately coarse: every ledger mutation drops the whole
// inventory key and the next read recomputes the full view. Ledgers here are
// thousands of rows, so one scan per miss beats incremental invalidation
// bookkeeping. The user directory lives under its own key with a longer TTL
// and is only dropped when a new user registers.

func getCachedInventory() (map[string]InventoryItem, bool) {
	var view map[string]InventoryItem
	found, err := config.GetRedisObject(CacheKeyInventory, &view)
	if err != nil || !found {
		return nil, false
	}
	return view, true
}

func setCachedInventory(view map[string]InventoryItem, ttl time.Duration) {
	// Cache write failure is not a data failure; the next read recomputes.
	_ = config.SetRedisObject(CacheKeyInventory, view, ttl)
}

func InvalidateInventoryCache() {
	_ = config.RemoveRedisKey(CacheKeyInventory)
}

func getCachedUsers() (map[string]string, bool) {
	var users map[string]string
	found, err := config.GetRedisObject(CacheKeyUsers, &users)
	if err != nil || !found {
		return nil, false
	}
	return users, true
}

func setCachedUsers(users map[string]string, ttl time.Duration) {
	_ = config.SetRedisObject(CacheKeyUsers, users, ttl)
}

func InvalidateUsersCache() {
	_ = config.RemoveRedisKey(CacheKeyUsers)
}

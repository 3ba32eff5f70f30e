// Package cache memoizes the results of expensive reads keyed by a query signature.
//
// # Overview
//
// The package exports:
//
//   - CacheService: a read through store of computed results
//   - Signature: an operation string plus positional and named arguments
//   - KeySerializer: builds stable keys from an operation and its arguments
//
// Two backends are available through NewCacheService. BackendMemory, the
// default, is unbounded and keeps every entry for the life of the process.
// BackendSturdyc is bounded by capacity and TTL for callers that want limits.
//
// # Basic Usage
//
//	svc, _ := cache.NewCacheService(cache.DefaultConfig())
//	sig := cache.NewSignature("SELECT * FROM users")
//	users, err := cache.GetOrCompute(ctx, svc, sig, func(ctx context.Context) ([]User, error) {
//		return loadUsers(ctx)
//	})
//
// The second call with an equal signature returns the stored value without
// running the function. Errors are never stored.
//
// # Key Serialization
//
// The default key serializer uses reflection:
//
//   - Basic types: direct string representation
//   - Slices and arrays: recursive serialization of elements
//   - Maps: sorted key/value pairs, so named parameter order never matters
//   - Stringers such as decimal.Decimal and time.Time: their String form
//   - Structs: msgpack of the exported fields, or a field walk when msgpack
//     cannot encode them
//   - Functions and channels: %p formatting, stable only within a process
//
// Keys longer than MaxKeyLength keep the operation prefix and fold the rest
// into an xxhash digest.
package cache

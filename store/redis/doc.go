// Package redis implements store.Store on Redis. Records are Hashes keyed
// by ID, listing order comes from Sorted Sets scored by ID, and every
// write that must be atomic (counter increment, unique instance insert,
// status compare-and-set) runs as a server-side Lua script.
//
// All keys of a store share one Redis Cluster hash tag taken from the
// prefix ("{jobrepo}:" by default), so a store lives in a single slot and
// works unchanged against a cluster client.
//
// The caller owns the client lifecycle unless the Store was built with
// WithOwnedClient:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Migrate(ctx); err != nil { ... }
package redis

// Package cmap provides a concurrent-safe, string-keyed sharded map.
//
// Keys are spread over a power-of-two number of shards by their murmur3
// hash. Each shard carries its own RWMutex, so operations on keys in
// different shards never contend.
//
// Values are stored as given; callers that hand out mutable values (such as
// byte slices) must copy them on the way in and out.
package cmap

package badger

import (
	"fmt"

	"github.com/TogetherCrew/hivemind-backend/core"
)

// Key prefixes for different data types
const (
	vectorPointPrefix = "vecpt"
	cacheEntryPrefix  = "embcch"
	registryPrefix    = "docreg"
	watermarkPrefix   = "wmark"
)

// makeVectorPointKey generates a key for a vector point within a collection.
// Format: prefix:collection:recordKey
func makeVectorPointKey(collection, recordKey string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", vectorPointPrefix, collection, recordKey))
}

// makeVectorPrefix generates the iteration prefix for one collection.
func makeVectorPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", vectorPointPrefix, collection))
}

// makeCacheKey generates a key for a cached embedding.
// Format: prefix:namespace:fingerprint
func makeCacheKey(namespace string, fp core.Fingerprint) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", cacheEntryPrefix, namespace, fp))
}

// makeCachePrefix generates the iteration prefix for one cache namespace.
func makeCachePrefix(namespace string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", cacheEntryPrefix, namespace))
}

// makeRegistryKey generates a key for a registry entry.
// Format: prefix:namespace:recordKey
func makeRegistryKey(namespace, recordKey string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", registryPrefix, namespace, recordKey))
}

// makeWatermarkKey generates a key for a collection watermark.
func makeWatermarkKey(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s", watermarkPrefix, collection))
}

// cacheFingerprintFromKey recovers the fingerprint from a cache key,
// given the namespace prefix it was stored under.
func cacheFingerprintFromKey(key, prefix []byte) (core.Fingerprint, error) {
	var fp uint64
	if _, err := fmt.Sscanf(string(key[len(prefix):]), "%d", &fp); err != nil {
		return 0, err
	}
	return core.Fingerprint(fp), nil
}

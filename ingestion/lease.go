package ingestion

import "sync"

// collectionLeases guards against concurrent runs over the same
// collection within this process. The vector database is embedded and
// single-process, so an in-process lock is a complete lease.
var collectionLeases sync.Map // collection name -> *sync.Mutex

func leaseFor(collection string) *sync.Mutex {
	lease, _ := collectionLeases.LoadOrStore(collection, &sync.Mutex{})
	return lease.(*sync.Mutex)
}

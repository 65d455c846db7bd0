package engine

import (
	"sync"

	"github.com/ensembl-io/genoverse-backend/pkg/cache"
	"github.com/ensembl-io/genoverse-backend/pkg/datahandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/genomicfile"
	"github.com/ensembl-io/genoverse-backend/pkg/species"
)

// AccessorCollection lazily builds and caches one datahandlers.Accessor
// per protocol version: one global process-wide collection keyed by
// version, lazily constructing a new DataAccessor for unseen versions.
// Every version shares the same
// boot-time Species/Features/Signal/Sequence/Cache collaborators; only
// the Version tag differs.
type AccessorCollection struct {
	mu        sync.Mutex
	byVersion map[uint32]*datahandlers.Accessor

	species  species.Resolver
	features genomicfile.FeatureReader
	signal   genomicfile.SignalReader
	sequence genomicfile.SequenceReader
	cache    *cache.Cache
}

// NewAccessorCollection builds an empty collection over the given
// shared, boot-time collaborators.
func NewAccessorCollection(sp species.Resolver, features genomicfile.FeatureReader, signal genomicfile.SignalReader, sequence genomicfile.SequenceReader, c *cache.Cache) *AccessorCollection {
	return &AccessorCollection{
		byVersion: map[uint32]*datahandlers.Accessor{},
		species:   sp,
		features:  features,
		signal:    signal,
		sequence:  sequence,
		cache:     c,
	}
}

// Get returns the Accessor for version, constructing it on first use.
func (a *AccessorCollection) Get(version uint32) *datahandlers.Accessor {
	a.mu.Lock()
	defer a.mu.Unlock()

	if da, ok := a.byVersion[version]; ok {
		return da
	}

	da := &datahandlers.Accessor{
		Species:  a.species,
		Features: a.features,
		Signal:   a.signal,
		Sequence: a.sequence,
		Cache:    a.cache,
		Version:  version,
	}
	a.byVersion[version] = da
	return da
}

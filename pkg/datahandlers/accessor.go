package datahandlers

import (
	"github.com/ensembl-io/genoverse-backend/pkg/cache"
	"github.com/ensembl-io/genoverse-backend/pkg/genomicfile"
	"github.com/ensembl-io/genoverse-backend/pkg/species"
)

// Accessor is the DataAccessor façade granting data handlers a resolver,
// data_model, and cache. resolver/data_model are split here into the
// species Resolver and the
// genomic file readers, which is what they actually resolve to.
type Accessor struct {
	Species  species.Resolver
	Features genomicfile.FeatureReader
	Signal   genomicfile.SignalReader
	Sequence genomicfile.SequenceReader
	Cache    *cache.Cache
	Version  uint32
}

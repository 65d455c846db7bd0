package engine

import (
	"github.com/ensembl-io/genoverse-backend/pkg/datahandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/registry"
)

// VersionedDataHandlers resolves a data endpoint's EndpointHandler by
// (name, protocol version), implementing selection of a handler per
// endpoint per version without forcing EndpointHandler to
// also implement registry.Handler's unrelated Process/RemotePrefix
// shape.
type VersionedDataHandlers struct {
	table *registry.VersionedTable[datahandlers.EndpointHandler]
}

// DataHandlerEntry is one (endpoint_name, handler, min_version) binding.
type DataHandlerEntry struct {
	Name       string
	Handler    datahandlers.EndpointHandler
	MinVersion uint32
}

// BuildVersionedDataHandlers precomputes the per-version resolution
// table from the given entries.
func BuildVersionedDataHandlers(entries []DataHandlerEntry) *VersionedDataHandlers {
	converted := make([]registry.VersionedEntry[datahandlers.EndpointHandler], len(entries))
	for i, e := range entries {
		converted[i] = registry.VersionedEntry[datahandlers.EndpointHandler]{
			Name: e.Name, Value: e.Handler, MinVersion: e.MinVersion,
		}
	}
	return &VersionedDataHandlers{table: registry.BuildVersionedTable(converted)}
}

// Get resolves the handler registered for name, valid for version.
func (v *VersionedDataHandlers) Get(name string, version uint32) (datahandlers.EndpointHandler, bool) {
	if v == nil {
		return nil, false
	}
	return v.table.Get(name, version)
}

// Package engine implements the PacketEngine: it decodes the inbound
// packet, partitions sub-commands into the ones this deployment owns and
// the ones a peer owns, dispatches each, and reframes the results into
// the outbound packet, built on the collaborators in pkg/registry,
// pkg/datahandlers, pkg/bundlehandlers and pkg/delegate.
package engine

import (
	"context"

	"github.com/ensembl-io/genoverse-backend/pkg/bundlehandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/datahandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
)

// RequestContext is the concrete registry.ProcessContext one sub-command
// handler adapter receives: the decoded payload plus every boot-time and
// per-packet collaborator a handler might need.
type RequestContext struct {
	Ctx context.Context

	Channel []any
	Version uint32
	Bump    string

	Payload any

	DataAccessor *datahandlers.Accessor
	BundleCtx    *bundlehandlers.Context
	Metrics      *metrics.ResponseMetrics

	DataRouter   *datahandlers.Router
	DataHandlers *VersionedDataHandlers
}

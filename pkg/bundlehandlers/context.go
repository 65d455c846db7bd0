// Package bundlehandlers implements the BundleRouter sub-command
// handlers: bootstrap, program, stick, stick-authority, jump, metric and
// expansion. Unlike the data endpoints in pkg/datahandlers, these carry
// no fingerprint/cache round trip of their own (jump is the one
// exception, and reuses pkg/cache directly) — each handler is a thin
// translation between a decoded sub-command payload and the boot-time
// collaborators assembled into a Context.
package bundlehandlers

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/ensembl-io/genoverse-backend/pkg/bundles"
	"github.com/ensembl-io/genoverse-backend/pkg/cache"
	"github.com/ensembl-io/genoverse-backend/pkg/expansion"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
	"github.com/ensembl-io/genoverse-backend/pkg/species"
	"github.com/ensembl-io/genoverse-backend/pkg/tracks"
)

// Asset is one boot-embedded static resource (a rendering shader, a UI
// icon atlas, ...), tagged by whether it belongs to the chrome (browser
// window furniture) or the visualisation surface proper — the split
// BootstrapHandler's load_assets(chrome bool) performs in the original.
type Asset struct {
	Data   []byte
	Chrome bool
}

// JumpIndex resolves a focus lookup string against the on-disk jump
// index when it is not already cached. pkg/jumpindex provides the
// file-backed implementation the server wires in; tests substitute
// stubs.
type JumpIndex interface {
	Lookup(ctx context.Context, lookup string) (stick string, left, right int64, ok bool)
}

// Context bundles every boot-time collaborator a BundleRouter handler
// needs. The engine holds one boot-built Context and copies it for every
// packet, setting Channel and Version from that packet.
type Context struct {
	Channel           string
	Version           uint32
	SupportedVersions []uint32

	Inventory  *bundles.Inventory
	Species    species.Resolver
	Tracks     *tracks.Tracks
	Cache      *cache.Cache
	MetricSink metrics.Sink
	Expansions *expansion.Registry
	JumpIndex  JumpIndex

	Assets map[string]Asset
}

// SupportsVersion reports whether v is one of the protocol versions this
// deployment answers for.
func (c *Context) SupportsVersion(v uint32) bool {
	for _, sv := range c.SupportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}

// loPort rewrites a channel URL's port by adding one, matching the
// original's lo_port(channel): the low-priority transport for a channel
// listens one port above the channel's primary (hi) port.
func loPort(channel string) string {
	u, err := url.Parse(channel)
	if err != nil {
		return channel
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return channel
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return channel
	}
	u.Host = net.JoinHostPort(host, strconv.Itoa(port+1))
	return u.String()
}

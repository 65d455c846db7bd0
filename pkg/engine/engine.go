package engine

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ensembl-io/genoverse-backend/pkg/bundlehandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/datahandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/delegate"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
	"github.com/ensembl-io/genoverse-backend/pkg/registry"
	"github.com/ensembl-io/genoverse-backend/pkg/tracks"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// Engine is the PacketEngine: it owns the handler registry,
// the version-keyed accessor collection, the data router and its
// per-version handler table, and the remote delegator, and implements
// the decode -> partition -> dispatch -> reframe loop.
type Engine struct {
	registry     *registry.Registry
	accessors    *AccessorCollection
	dataRouter   *datahandlers.Router
	dataHandlers *VersionedDataHandlers
	delegator    *delegate.Delegator

	bundleProto       bundlehandlers.Context
	defaultChannel    string
	supportedVersions []uint32

	logger *logrus.Logger
}

// New assembles an Engine from its boot-time collaborators. bundleProto
// carries every boot-loaded BundleRouter collaborator
// (Inventory/Species/Tracks/Cache/MetricSink/Expansions/JumpIndex/Assets);
// its Channel/Version fields are overwritten per request.
func New(
	reg *registry.Registry,
	accessors *AccessorCollection,
	dataRouter *datahandlers.Router,
	dataHandlers *VersionedDataHandlers,
	delegator *delegate.Delegator,
	bundleProto bundlehandlers.Context,
	defaultChannel string,
	logger *logrus.Logger,
) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		registry:          reg,
		accessors:         accessors,
		dataRouter:        dataRouter,
		dataHandlers:      dataHandlers,
		delegator:         delegator,
		bundleProto:       bundleProto,
		defaultChannel:    defaultChannel,
		supportedVersions: bundleProto.SupportedVersions,
		logger:            logger,
	}
}

// Process runs one inbound packet through the full decode -> partition
// -> dispatch -> reframe pipeline and returns the encoded outbound
// packet.
func (e *Engine) Process(ctx context.Context, packetBytes []byte) ([]byte, error) {
	pkt, err := DecodePacket(packetBytes)
	if err != nil {
		return nil, err
	}

	channel := pkt.Channel
	if len(channel) == 0 && e.defaultChannel != "" {
		channel = []any{e.defaultChannel}
	}

	da := e.accessors.Get(pkt.Version)
	bump := da.Cache.Bump(ctx)

	bc := e.bundleProto
	bc.Channel = channelString(channel, e.defaultChannel)
	bc.Version = pkt.Version

	m := metrics.New()

	remoteBuckets := map[string][]delegate.DivertedRequest{}
	var localReqs []SubRequest

	for _, req := range pkt.Requests {
		if handler, ok := e.registry.HandlerForKind(req.Kind); ok {
			if prefix, divertable := handler.RemotePrefix(req.Payload); divertable {
				if peer, ok := e.delegator.ResolvePeer(prefix); ok {
					remoteBuckets[peer] = append(remoteBuckets[peer], delegate.DivertedRequest{
						ID: req.ID, Kind: req.Kind, Payload: req.Payload,
					})
					continue
				}
			}
		}
		localReqs = append(localReqs, req)
	}

	var replies []idReply
	bundleNames := map[string]struct{}{}
	var programDescriptors []any
	var remoteTrackFrags [][]byte

	peerNames := make([]string, 0, len(remoteBuckets))
	for peer := range remoteBuckets {
		peerNames = append(peerNames, peer)
	}
	sort.Strings(peerNames)

	for _, peer := range peerNames {
		result := e.delegator.Forward(ctx, peer, pkt.Priority, channel, pkt.Version, remoteBuckets[peer])
		for _, r := range result.Responses {
			replies = append(replies, idReply{ID: r.ID, Payload: r.Payload})
		}
		programDescriptors = append(programDescriptors, result.BundleDescriptors...)
		remoteTrackFrags = append(remoteTrackFrags, result.TracksPacked...)
	}

	aggregateTracks := tracks.New()

	for _, req := range localReqs {
		if req.Kind == KindData && !bc.SupportsVersion(pkt.Version) {
			payload, encErr := wire.Marshal([]any{uint64(0)})
			if encErr != nil {
				return nil, encErr
			}
			wrapped, encErr := wire.EncodeArray(uint64(KindUnsupportedVersion), wire.RawFragment(payload))
			if encErr != nil {
				return nil, encErr
			}
			replies = append(replies, idReply{ID: req.ID, Payload: wrapped})
			continue
		}

		handler, ok := e.registry.HandlerForKind(req.Kind)
		if !ok {
			wrapped, encErr := wrapResponse(req.Kind, registry.ErrorResponse("unsupported command type"))
			if encErr != nil {
				return nil, encErr
			}
			replies = append(replies, idReply{ID: req.ID, Payload: wrapped})
			continue
		}

		rc := &RequestContext{
			Ctx:          ctx,
			Channel:      channel,
			Version:      pkt.Version,
			Bump:         bump,
			Payload:      req.Payload,
			DataAccessor: da,
			BundleCtx:    &bc,
			Metrics:      m,
			DataRouter:   e.dataRouter,
			DataHandlers: e.dataHandlers,
		}

		resp, procErr := handler.Process(rc)
		if procErr != nil {
			e.logger.WithError(procErr).WithField("kind", req.Kind).Warn("engine: sub-command handler failed")
			resp = registry.ErrorResponse(procErr.Error())
		}

		wrapped, encErr := wrapResponse(req.Kind, resp)
		if encErr != nil {
			return nil, encErr
		}
		replies = append(replies, idReply{ID: req.ID, Payload: wrapped})

		for name := range resp.Bundles {
			bundleNames[name] = struct{}{}
		}
		aggregateTracks.Merge(resp.Tracks)
	}

	sortedNames := make([]string, 0, len(bundleNames))
	for name := range bundleNames {
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)

	for _, name := range sortedNames {
		bundle, loadErr := bc.Inventory.Load(name)
		if loadErr != nil {
			e.logger.WithError(loadErr).WithField("bundle", name).Warn("engine: failed to load referenced bundle")
			continue
		}
		programDescriptors = append(programDescriptors, []any{bundle.Name, bundle.Program, bundle.Contents})
	}

	var trackFrags [][]byte
	if !aggregateTracks.Empty() {
		dumped, dumpErr := aggregateTracks.DumpForWire()
		if dumpErr != nil {
			return nil, dumpErr
		}
		for _, item := range dumped {
			if raw, ok := item.(wire.RawFragment); ok {
				trackFrags = append(trackFrags, raw)
				continue
			}
			b, encErr := wire.Marshal(item)
			if encErr != nil {
				return nil, encErr
			}
			trackFrags = append(trackFrags, b)
		}
	}
	trackFrags = append(trackFrags, remoteTrackFrags...)

	return EncodeResponse(replies, programDescriptors, trackFrags)
}

// wrapResponse produces the final `[kind, payload]` bytes for one
// sub-command reply. datahandlers.Router pre-wraps the Payload of its
// kind=5 data replies (it is also the exact bytes cached under the
// fingerprint), so those are spliced verbatim; every other Response,
// including a kind=1 error raised on the data path, carries the raw
// inner value and still needs the `[kind, payload]` envelope.
func wrapResponse(reqKind uint8, resp registry.Response) ([]byte, error) {
	if reqKind == KindData && resp.Kind == 5 {
		return resp.Payload, nil
	}
	return wire.EncodeArray(uint64(resp.Kind), wire.RawFragment(resp.Payload))
}

func channelString(channel []any, fallback string) string {
	if len(channel) == 0 {
		return fallback
	}
	if s, ok := channel[0].(string); ok {
		return s
	}
	return fallback
}

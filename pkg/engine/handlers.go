package engine

import (
	"fmt"

	"github.com/ensembl-io/genoverse-backend/pkg/bundlehandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/datahandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
	"github.com/ensembl-io/genoverse-backend/pkg/registry"
)

// Request sub-command kinds. Reply kinds are a separate numbering
// convention, assigned by each handler package (see
// pkg/bundlehandlers and pkg/datahandlers doc comments).
const (
	KindBoot            uint8 = 0
	KindProgram         uint8 = 1
	KindStick           uint8 = 2
	KindStickAuthority  uint8 = 3
	KindData            uint8 = 4
	KindJump            uint8 = 5
	KindMetric          uint8 = 6
	KindExpansion       uint8 = 7
	KindUnsupportedVersion uint8 = 8
	KindSmallValue      uint8 = 9
)

func requestContext(pc registry.ProcessContext) (*RequestContext, error) {
	rc, ok := pc.(*RequestContext)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected ProcessContext type %T", pc)
	}
	return rc, nil
}

// bootHandler adapts bundlehandlers.BootstrapHandler.
type bootHandler struct{}

func (bootHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	return bundlehandlers.BootstrapHandler(rc.Ctx, rc.BundleCtx)
}

func (bootHandler) RemotePrefix(payload any) ([]string, bool) { return nil, false }

// programHandler adapts bundlehandlers.ProgramHandler. Payload shape:
// [programName, wantChannel].
type programHandler struct{}

func decodeProgramPayload(raw any) (name, channel string, err error) {
	items, ok := raw.([]any)
	if !ok || len(items) != 2 {
		return "", "", fmt.Errorf("engine: malformed program request")
	}
	name, ok = items[0].(string)
	if !ok {
		return "", "", fmt.Errorf("engine: program request name must be a string")
	}
	channel, ok = items[1].(string)
	if !ok {
		return "", "", fmt.Errorf("engine: program request channel must be a string")
	}
	return name, channel, nil
}

func (programHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	name, channel, err := decodeProgramPayload(rc.Payload)
	if err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}
	return bundlehandlers.ProgramHandler(rc.Ctx, rc.BundleCtx, name, channel)
}

func (programHandler) RemotePrefix(payload any) ([]string, bool) {
	name, _, err := decodeProgramPayload(payload)
	if err != nil {
		return nil, false
	}
	return []string{"program", name}, true
}

// stickHandler adapts bundlehandlers.StickHandler. Payload shape:
// [stickID].
type stickHandler struct{}

func decodeStickPayload(raw any) (string, error) {
	items, ok := raw.([]any)
	if !ok || len(items) != 1 {
		return "", fmt.Errorf("engine: malformed stick request")
	}
	id, ok := items[0].(string)
	if !ok {
		return "", fmt.Errorf("engine: stick request id must be a string")
	}
	return id, nil
}

func (stickHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	id, err := decodeStickPayload(rc.Payload)
	if err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}
	return bundlehandlers.StickHandler(rc.Ctx, rc.BundleCtx, id)
}

func (stickHandler) RemotePrefix(payload any) ([]string, bool) {
	id, err := decodeStickPayload(payload)
	if err != nil {
		return nil, false
	}
	return []string{"stick", id}, true
}

// stickAuthorityHandler adapts bundlehandlers.StickAuthorityHandler.
type stickAuthorityHandler struct{}

func (stickAuthorityHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	return bundlehandlers.StickAuthorityHandler(rc.Ctx, rc.BundleCtx)
}

func (stickAuthorityHandler) RemotePrefix(payload any) ([]string, bool) { return nil, false }

// jumpHandler adapts bundlehandlers.JumpHandler. Payload shape: [lookup].
type jumpHandler struct{}

func decodeJumpPayload(raw any) (string, error) {
	items, ok := raw.([]any)
	if !ok || len(items) != 1 {
		return "", fmt.Errorf("engine: malformed jump request")
	}
	lookup, ok := items[0].(string)
	if !ok {
		return "", fmt.Errorf("engine: jump request lookup must be a string")
	}
	return lookup, nil
}

func (jumpHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	lookup, err := decodeJumpPayload(rc.Payload)
	if err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}
	return bundlehandlers.JumpHandler(rc.Ctx, rc.BundleCtx, lookup)
}

func (jumpHandler) RemotePrefix(payload any) ([]string, bool) {
	lookup, err := decodeJumpPayload(payload)
	if err != nil {
		return nil, false
	}
	return []string{"jump", lookup}, true
}

// metricHandler adapts bundlehandlers.MetricHandler. Payload shape: a
// single map with a "type" key selecting the dispatch and its sibling
// keys ("datastream"/"programrun"/"general") carrying the
// column-compressed bodies directly, matching metriccmd.py's wire
// shape. Never delegated remotely (telemetry is always recorded by
// whichever process answered the packet).
type metricHandler struct{}

func decodeMetricPayload(raw any) (metrics.Telemetry, error) {
	payload, ok := raw.(map[string]any)
	if !ok {
		return metrics.Telemetry{}, fmt.Errorf("engine: malformed metric request")
	}
	kind, ok := payload["type"].(string)
	if !ok {
		return metrics.Telemetry{}, fmt.Errorf("engine: metric request type must be a string")
	}
	return metrics.Telemetry{Type: kind, Payload: payload}, nil
}

func (metricHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	telemetry, err := decodeMetricPayload(rc.Payload)
	if err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}
	return bundlehandlers.MetricHandler(rc.Ctx, rc.BundleCtx, telemetry)
}

func (metricHandler) RemotePrefix(payload any) ([]string, bool) { return nil, false }

// expansionHandler adapts bundlehandlers.ExpansionHandler. Payload
// shape: [name, step], where step is always a string (e.g. a track id),
// matching bundlehandlers' string-typed Run signature.
type expansionHandler struct{}

func decodeExpansionPayload(raw any) (name string, step string, err error) {
	items, ok := raw.([]any)
	if !ok || len(items) != 2 {
		return "", "", fmt.Errorf("engine: malformed expansion request")
	}
	name, ok = items[0].(string)
	if !ok {
		return "", "", fmt.Errorf("engine: expansion request name must be a string")
	}
	step, ok = items[1].(string)
	if !ok {
		return "", "", fmt.Errorf("engine: expansion request step must be a string")
	}
	return name, step, nil
}

func (expansionHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	name, step, err := decodeExpansionPayload(rc.Payload)
	if err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}
	return bundlehandlers.ExpansionHandler(rc.Ctx, rc.BundleCtx, name, step)
}

func (expansionHandler) RemotePrefix(payload any) ([]string, bool) {
	name, _, err := decodeExpansionPayload(payload)
	if err != nil {
		return nil, false
	}
	return []string{"expansion", name}, true
}

// dataHandler adapts datahandlers.Router for kind=4, resolving the
// endpoint-specific EndpointHandler itself (per-endpoint, per-version
// selection) before handing off to the router's shared
// fingerprint/cache/encode pipeline.
type dataHandler struct{}

func (dataHandler) Process(pc registry.ProcessContext) (registry.Response, error) {
	rc, err := requestContext(pc)
	if err != nil {
		return registry.Response{}, err
	}
	payload, err := datahandlers.DecodePayload(rc.Payload)
	if err != nil {
		if derr, ok := err.(*datahandlers.DataError); ok {
			return registry.ErrorResponse(derr.Error()), nil
		}
		return registry.Response{}, err
	}

	handler, _ := rc.DataHandlers.Get(payload.Name, rc.Version)
	return rc.DataRouter.ProcessWithHandler(rc.Ctx, rc.DataAccessor, rc.Bump, payload.Channel, payload, rc.Metrics, handler)
}

func (dataHandler) RemotePrefix(payload any) ([]string, bool) {
	p, err := datahandlers.DecodePayload(payload)
	if err != nil {
		return nil, false
	}
	return []string{"data", p.Name, p.Panel.Stick}, true
}

// BuildRegistry assembles the boot-time registry.Registry binding every
// request kind to its adapter Handler. Data-endpoint-per-version
// selection lives inside dataHandler (via dataHandlers), so kind=4
// registers exactly one default handler, matching the "" single-handler
// convention HandlerForKind uses for boot.
func BuildRegistry() *registry.Registry {
	b := registry.NewBuilder()
	b.RegisterDefault(KindBoot, "", bootHandler{})
	b.RegisterDefault(KindProgram, "", programHandler{})
	b.RegisterDefault(KindStick, "", stickHandler{})
	b.RegisterDefault(KindStickAuthority, "", stickAuthorityHandler{})
	b.RegisterDefault(KindData, "", dataHandler{})
	b.RegisterDefault(KindJump, "", jumpHandler{})
	b.RegisterDefault(KindMetric, "", metricHandler{})
	b.RegisterDefault(KindExpansion, "", expansionHandler{})
	return b.Build()
}

package bundlehandlers

import (
	"context"
	"strings"

	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
	"github.com/ensembl-io/genoverse-backend/pkg/registry"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// MetricHandler answers the metric sub-command by dispatching the
// telemetry body to the unmangler/formatter matching its declared type,
// then forwarding the resulting line-protocol text to the configured
// sink. A sink failure is logged by the sink itself and never fails the
// packet — metrics delivery is best-effort. Always replies with the
// empty kind=2 acknowledgement. Grounded on metriccmd.py's
// METRIC_HANDLERS table: a "Client" telemetry body carries any
// combination of "datastream", "programrun" and "general" sibling keys,
// and every sub-handler present in the body runs.
func MetricHandler(ctx context.Context, bc *Context, telemetry metrics.Telemetry) (registry.Response, error) {
	var parts []string

	switch telemetry.Type {
	case "Client":
		if _, ok := telemetry.Payload["datastream"]; ok {
			if points, err := metrics.UnmangleDatastream(telemetry.Payload); err == nil {
				parts = append(parts, metrics.FormatDatastreamLines(points))
			}
		}
		if _, ok := telemetry.Payload["programrun"]; ok {
			if points, err := metrics.UnmangleProgramRun(telemetry.Payload); err == nil {
				parts = append(parts, metrics.FormatProgramRunLines(points))
			}
		}
		if _, ok := telemetry.Payload["general"]; ok {
			if general, err := metrics.FormatGeneralLines(telemetry.Payload); err == nil {
				parts = append(parts, general)
			}
		}
	case "datastream":
		if points, err := metrics.UnmangleDatastream(telemetry.Payload); err == nil {
			parts = append(parts, metrics.FormatDatastreamLines(points))
		}
	case "programrun":
		if points, err := metrics.UnmangleProgramRun(telemetry.Payload); err == nil {
			parts = append(parts, metrics.FormatProgramRunLines(points))
		}
	case "general":
		if general, err := metrics.FormatGeneralLines(telemetry.Payload); err == nil {
			parts = append(parts, general)
		}
	}

	lines := strings.Join(parts, "")
	if lines != "" && bc.MetricSink != nil {
		_ = bc.MetricSink.Write(ctx, lines)
	}

	encoded, err := wire.Marshal([]any{})
	if err != nil {
		return registry.Response{}, err
	}
	return registry.NewResponse(2, encoded), nil
}

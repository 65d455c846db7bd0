package datahandlers

import (
	"context"
	"fmt"

	"github.com/ensembl-io/genoverse-backend/pkg/dataalg"
)

// featureHandler renders a flat set of name/start/end columns from a
// FeatureReader namespace. gene, gene-overview, transcript,
// zoomed-transcript and variant all share this shape in the original
// (each backed by its own bigbed-derived file under app/data/genedata.py,
// app/data/variant.py); this module's Non-goals exclude parsing those
// file formats for real; Namespace selects which stubbed reader answers.
type featureHandler struct {
	Namespace string
}

// GeneDataHandler renders gene features for a panel.
func GeneDataHandler() EndpointHandler { return featureHandler{Namespace: "gene"} }

// GeneOverviewDataHandler renders a coarser gene overview.
func GeneOverviewDataHandler() EndpointHandler { return featureHandler{Namespace: "gene-overview"} }

// TranscriptDataHandler renders transcript features; zoomed controls
// whether exon-level detail is included (mirrors TranscriptDataHandler's
// boolean constructor argument in the original).
type TranscriptDataHandler struct{ Zoomed bool }

func (h TranscriptDataHandler) ProcessData(ctx context.Context, da *Accessor, panel Panel, scope map[string][]string, accept string) (map[string]any, bool, error) {
	namespace := "transcript"
	if h.Zoomed {
		namespace = "zoomed-transcript"
	}
	return featureHandler{Namespace: namespace}.ProcessData(ctx, da, panel, scope, accept)
}

// VariantDataHandler renders variant features for a panel.
func VariantDataHandler() EndpointHandler { return featureHandler{Namespace: "variant"} }

func (h featureHandler) ProcessData(ctx context.Context, da *Accessor, panel Panel, scope map[string][]string, accept string) (map[string]any, bool, error) {
	if _, ok := da.Species.Stick(panel.Stick); !ok {
		return nil, false, &DataError{Reason: "unknown chromosome " + panel.Stick}
	}

	records, err := da.Features.ReadFeatures(ctx, panel.Stick, panel.Start(), panel.End())
	if err != nil {
		return nil, false, &DataError{Reason: fmt.Sprintf("reading %s: %v", h.Namespace, err)}
	}

	starts := make([]int64, len(records))
	ends := make([]int64, len(records))
	names := make([]string, len(records))
	for i, r := range records {
		starts[i] = r.Start
		ends[i] = r.End
		names[i] = r.Name
	}

	startsFragment, err := dataalg.EncodeNumbers("NDZRL", starts)
	if err != nil {
		return nil, false, err
	}
	endsFragment, err := dataalg.EncodeNumbers("NDZRL", ends)
	if err != nil {
		return nil, false, err
	}
	namesFragment, err := dataalg.EncodeStrings("SYRLZ", names)
	if err != nil {
		return nil, false, err
	}

	return map[string]any{
		h.Namespace + "_starts": startsFragment,
		h.Namespace + "_ends":   endsFragment,
		h.Namespace + "_names":  namesFragment,
	}, false, nil
}

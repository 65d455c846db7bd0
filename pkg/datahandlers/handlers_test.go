package datahandlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ensembl-io/genoverse-backend/pkg/genomicfile"
	"github.com/ensembl-io/genoverse-backend/pkg/species"
)

func TestZoomedSeqHandlerEncodesLetters(t *testing.T) {
	store := genomicfile.NewStubStore()
	store.Sequence["13"] = []byte("ACGTN")

	da := &Accessor{Sequence: store, Species: species.NewInMemory([]species.Stick{{ID: "13", Size: 100}})}

	handler := ZoomedSeqHandler{}
	data, invariant, err := handler.ProcessData(context.Background(), da, Panel{Stick: "13", Scale: 0, Index: 0}, nil, "")
	require.NoError(t, err)
	require.False(t, invariant)
	require.Contains(t, data, "seq")
	require.Contains(t, data, "seq_starts")
}

func TestWiggleDataHandlerUnknownChromosome(t *testing.T) {
	da := &Accessor{Species: species.NewInMemory(nil), Signal: genomicfile.NewStubStore()}
	handler := WiggleDataHandler{}
	_, _, err := handler.ProcessData(context.Background(), da, Panel{Stick: "nope"}, nil, "")
	require.Error(t, err)
}

func TestContigDataHandlerShimmerVsPlain(t *testing.T) {
	store := genomicfile.NewStubStore()
	store.Features["13"] = []genomicfile.Record{
		{Start: 0, End: 1000, Score: 1},
		{Start: 500, End: 1500, Score: -1},
	}
	da := &Accessor{
		Species:  species.NewInMemory([]species.Stick{{ID: "13", Size: 100000}}),
		Features: store,
	}

	plain := ContigDataHandler{Shimmer: false}
	data, _, err := plain.ProcessData(context.Background(), da, Panel{Stick: "13", Scale: 10, Index: 0}, nil, "")
	require.NoError(t, err)
	require.Contains(t, data, "contig_sense")

	shimmered := ContigDataHandler{Shimmer: true}
	data, _, err = shimmered.ProcessData(context.Background(), da, Panel{Stick: "13", Scale: 10, Index: 0}, nil, "")
	require.NoError(t, err)
	require.Contains(t, data, "contig_starts")
}

func TestFeatureHandlerGene(t *testing.T) {
	store := genomicfile.NewStubStore()
	store.Features["13"] = []genomicfile.Record{{Start: 10, End: 20, Name: "BRCA2"}}
	da := &Accessor{
		Species:  species.NewInMemory([]species.Stick{{ID: "13", Size: 100000}}),
		Features: store,
	}

	handler := GeneDataHandler()
	data, _, err := handler.ProcessData(context.Background(), da, Panel{Stick: "13", Scale: 0, Index: 0}, nil, "")
	require.NoError(t, err)
	require.Contains(t, data, "gene_names")
}

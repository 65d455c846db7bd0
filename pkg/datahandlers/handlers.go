package datahandlers

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/ensembl-io/genoverse-backend/pkg/dataalg"
)

// ZoomedSeqHandler renders raw sequence letters for a panel, grounded on
// app/data/sequence.py's sequence_blocks: positions are delta+zigzag+
// lesqlite2-packed, letters are dictionary-classified (non-ACGT bases
// collapse to the empty string, same as the original).
type ZoomedSeqHandler struct{}

func (ZoomedSeqHandler) ProcessData(ctx context.Context, da *Accessor, panel Panel, scope map[string][]string, accept string) (map[string]any, bool, error) {
	raw, err := da.Sequence.ReadSequence(ctx, panel.Stick, panel.Start(), panel.End())
	if err != nil {
		return nil, false, &DataError{Reason: fmt.Sprintf("reading sequence: %v", err)}
	}

	starts := make([]int64, len(raw))
	letters := make([]string, len(raw))
	for i, b := range raw {
		starts[i] = panel.Start() + int64(i)
		letter := string(b)
		switch letter {
		case "C", "G", "A", "T":
		default:
			letter = ""
		}
		letters[i] = letter
	}

	startsFragment, err := dataalg.EncodeNumbers("NDZRL", starts)
	if err != nil {
		return nil, false, err
	}
	lettersFragment, err := dataalg.EncodeStrings("SYRLZ", letters)
	if err != nil {
		return nil, false, err
	}

	return map[string]any{
		"seq_starts": startsFragment,
		"seq":        lettersFragment,
	}, false, nil
}

// gcScale matches the original's fixed downscale divisor for GC content
// wiggle values.
const gcScale = 4

// WiggleDataHandler renders GC-content wiggle values, grounded on
// app/data/gc.py's get_gc: signal rounded/scaled then delta+zigzag+
// lesqlite2-packed.
type WiggleDataHandler struct{}

func (WiggleDataHandler) ProcessData(ctx context.Context, da *Accessor, panel Panel, scope map[string][]string, accept string) (map[string]any, bool, error) {
	if _, ok := da.Species.Stick(panel.Stick); !ok {
		return nil, false, &DataError{Reason: "unknown chromosome " + panel.Stick}
	}

	values, err := da.Signal.ReadSignal(ctx, panel.Stick, panel.Start(), panel.End())
	if err != nil {
		return nil, false, &DataError{Reason: fmt.Sprintf("reading signal: %v", err)}
	}

	scaled := make([]int64, len(values))
	for i, v := range values {
		x := v.Value
		if x == 0 {
			x = 1.0
		}
		scaled[i] = int64(x/gcScale + 0.5)
	}

	valuesFragment, err := dataalg.EncodeNumbers("NDZRL", scaled)
	if err != nil {
		return nil, false, err
	}
	rangeFragment, err := dataalg.EncodeNumbers("NRL", []int64{panel.Start(), panel.End()})
	if err != nil {
		return nil, false, err
	}

	return map[string]any{
		"values": valuesFragment,
		"range":  rangeFragment,
	}, false, nil
}

// dominoCount matches the original's fixed shimmering resolution.
const dominoCount = 200

// ContigDataHandler renders contig-boundary features; with Shimmer set it
// additionally applies the "shimmering" downsample so that sparse
// senses remain visible at low zoom (grounded on app/data/contig.py).
type ContigDataHandler struct{ Shimmer bool }

func (h ContigDataHandler) ProcessData(ctx context.Context, da *Accessor, panel Panel, scope map[string][]string, accept string) (map[string]any, bool, error) {
	if _, ok := da.Species.Stick(panel.Stick); !ok {
		return nil, false, &DataError{Reason: "unknown chromosome " + panel.Stick}
	}

	records, err := da.Features.ReadFeatures(ctx, panel.Stick, panel.Start(), panel.End())
	if err != nil {
		return nil, false, &DataError{Reason: fmt.Sprintf("reading contigs: %v", err)}
	}

	starts := make([]int64, len(records))
	ends := make([]int64, len(records))
	senses := make([]bool, len(records))
	for i, r := range records {
		starts[i] = r.Start
		ends[i] = r.End
		senses[i] = r.Score >= 0
	}

	if h.Shimmer {
		starts, ends, senses = shimmer(starts, ends, senses, panel.Start(), panel.End())
	}

	senseFragment, err := dataalg.EncodeBooleans("BB", senses)
	if err != nil {
		return nil, false, err
	}
	startsFragment, err := dataalg.EncodeNumbers("NDZRL", starts)
	if err != nil {
		return nil, false, err
	}
	endsFragment, err := dataalg.EncodeNumbers("NDZRL", ends)
	if err != nil {
		return nil, false, err
	}

	return map[string]any{
		"contig_sense":  senseFragment,
		"contig_starts": startsFragment,
		"contig_ends":   endsFragment,
	}, false, nil
}

// shimmer divides [start, end) into dominoCount equal buckets and
// collapses overlapping same-sense features, splitting a bucket that
// sees both senses in half (coin-flipping which half gets which sense),
// matching the original's domino algorithm.
func shimmer(starts, ends []int64, senses []bool, start, end int64) ([]int64, []int64, []bool) {
	if len(starts) == 0 || end <= start {
		return nil, nil, nil
	}

	dominoBP := float64(end-start) / float64(dominoCount)
	onoff := make([]int, dominoCount)
	for i := range starts {
		startD := int(float64(starts[i]-start) / dominoBP)
		endD := int(float64(ends[i]-start) / dominoBP)
		if startD < 0 {
			startD = 0
		}
		if endD >= dominoCount {
			endD = dominoCount - 1
		}
		bit := 1
		if senses[i] {
			bit = 2
		}
		for d := startD; d <= endD; d++ {
			onoff[d] |= bit
		}
	}

	var outStarts, outEnds []int64
	var outSenses []bool
	push := func(s, e int64, sense bool) {
		n := len(outSenses)
		if n > 0 && outSenses[n-1] == sense && outEnds[n-1] == s {
			outEnds[n-1] = e
			return
		}
		outStarts = append(outStarts, s)
		outEnds = append(outEnds, e)
		outSenses = append(outSenses, sense)
	}

	for d := 0; d < dominoCount; d++ {
		startD := start + int64(float64(d)*dominoBP)
		endD := start + int64(float64(d+1)*dominoBP)
		mid := (startD + endD) / 2
		switch onoff[d] {
		case 3:
			flip := rand.Intn(2) != 0
			push(startD, mid, flip)
			push(mid, endD, !flip)
		case 2:
			push(startD, endD, true)
		case 1:
			push(startD, endD, false)
		}
	}

	return outStarts, outEnds, outSenses
}

package bundlehandlers

import (
	"context"
	"fmt"

	"github.com/ensembl-io/genoverse-backend/pkg/expansion"
	"github.com/ensembl-io/genoverse-backend/pkg/registry"
	"github.com/ensembl-io/genoverse-backend/pkg/tracks"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// ExpansionHandler answers the expansion sub-command: looks up a
// declared expansion by name, invokes its callback with the client's
// step parameter, and attaches the synthesized tracks to the reply.
// There is no expansioncmd.py in the original to ground a reply kind on
// (expansions are a callback-registry feature documented only in
// model/expansions.py there); this module assigns it the unused kind=7,
// distinct from every reply kind the original source does use.
func ExpansionHandler(ctx context.Context, bc *Context, name string, step string) (registry.Response, error) {
	ex, ok := bc.Tracks.GetExpansion(name)
	if !ok {
		return registry.ErrorResponse(fmt.Sprintf("Unknown expansion %s", name)), nil
	}

	synthesized, err := expansion.Run(bc.Expansions, ex, step)
	if err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}

	encoded, err := wire.Marshal([]any{})
	if err != nil {
		return registry.Response{}, err
	}

	resp := registry.NewResponse(7, encoded)
	if synthesized != nil {
		resp.Tracks = synthesized
	} else {
		resp.Tracks = tracks.New()
	}
	return resp, nil
}

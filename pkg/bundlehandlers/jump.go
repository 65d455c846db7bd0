package bundlehandlers

import (
	"context"

	"github.com/ensembl-io/genoverse-backend/pkg/registry"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// JumpHandler answers the jump sub-command, replying with kind=6:
// resolves a focus
// lookup string (conventionally "focus:<kind>:<genome>:<local_id>") to a
// (stick, left, right) panel, checking the cache first and falling back
// to the on-disk jump index on a miss. Grounded on datacmd.py's
// JumpHandler.process, including its {"no": true} sentinel for an
// unresolvable lookup.
func JumpHandler(ctx context.Context, bc *Context, lookup string) (registry.Response, error) {
	if stick, left, right, ok := bc.Cache.GetJump(ctx, bc.Version, lookup); ok {
		return jumpFound(stick, left, right)
	}

	if bc.JumpIndex != nil {
		if stick, left, right, ok := bc.JumpIndex.Lookup(ctx, lookup); ok {
			bc.Cache.SetJump(ctx, bc.Version, lookup, stick, left, right)
			return jumpFound(stick, left, right)
		}
	}

	encoded, err := wire.Marshal(map[string]any{"no": true})
	if err != nil {
		return registry.Response{}, err
	}
	return registry.NewResponse(6, encoded), nil
}

func jumpFound(stick string, left, right int64) (registry.Response, error) {
	encoded, err := wire.Marshal(map[string]any{"stick": stick, "left": left, "right": right})
	if err != nil {
		return registry.Response{}, err
	}
	return registry.NewResponse(6, encoded), nil
}

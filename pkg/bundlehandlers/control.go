package bundlehandlers

import (
	"context"
	"fmt"

	"github.com/ensembl-io/genoverse-backend/pkg/registry"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// ProgramHandler answers the program sub-command: given the channel the
// client believes it is talking to and a channel-visible program name,
// resolves the owning bundle and adds it to the reply's bundle set (the
// engine ships its contents in the packet's "programs" list); the
// kind=2 reply payload itself is an empty array. Grounded on controlcmds.py's
// ProgramHandler.process, which rejects a request whose declared channel
// no longer matches (a stale boot reply being replayed against a
// different deployment) with the generic error reply (kind=1).
func ProgramHandler(ctx context.Context, bc *Context, programName, wantChannel string) (registry.Response, error) {
	if wantChannel != bc.Channel {
		return registry.ErrorResponse("Only know of programs in my own channel"), nil
	}

	bundleName, ok := bc.Inventory.FindBundle(programName)
	if !ok {
		return registry.ErrorResponse(fmt.Sprintf("Unknown program %s", programName)), nil
	}

	if _, err := bc.Inventory.Load(bundleName); err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}

	encoded, err := wire.Marshal([]any{})
	if err != nil {
		return registry.Response{}, err
	}

	resp := registry.NewResponse(2, encoded)
	resp.Bundles[bundleName] = struct{}{}
	return resp, nil
}

// StickHandler answers the stick sub-command: the requested stick's
// size, topology and tags, both carried on a kind=3 reply — including
// the "unknown stick" case, which the original represents as an
// in-payload error field rather than the generic error kind. Grounded on
// controlcmds.py's StickHandler.process.
func StickHandler(ctx context.Context, bc *Context, stickID string) (registry.Response, error) {
	stick, ok := bc.Species.Stick(stickID)

	var body map[string]any
	if !ok {
		body = map[string]any{"error": fmt.Sprintf("Unknown stick %s", stickID)}
	} else {
		body = map[string]any{
			"id":       stick.ID,
			"size":     stick.Size,
			"topology": uint8(stick.Topology),
			"tags":     stick.Tags,
		}
	}

	encoded, err := wire.Marshal(body)
	if err != nil {
		return registry.Response{}, err
	}
	return registry.NewResponse(3, encoded), nil
}

// StickAuthorityHandler answers the stick-authority sub-command: the
// startup/lookup/jump program names this deployment authorises clients
// to run, on a kind=4 reply, or the generic error reply if this
// deployment is not configured as an authority. Grounded on
// controlcmds.py's StickAuthorityHandler.process.
func StickAuthorityHandler(ctx context.Context, bc *Context) (registry.Response, error) {
	startup, lookup, jump, ok := bc.Inventory.StickAuthority()
	if !ok {
		return registry.ErrorResponse("I am not an authority"), nil
	}

	encoded, err := wire.Marshal([]any{bc.Channel, startup, lookup, jump})
	if err != nil {
		return registry.Response{}, err
	}
	return registry.NewResponse(4, encoded), nil
}

package bundlehandlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/ensembl-io/genoverse-backend/pkg/registry"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// BootstrapHandler answers the boot sub-command (kind=0): the channel's
// namespace, the embedded chrome/non-chrome assets, the protocol
// versions this deployment serves, and the boot bundle plus boot tracks
// for the requested version. Grounded on controlcmds.py's
// BootstrapHandler.process.
func BootstrapHandler(ctx context.Context, bc *Context) (registry.Response, error) {
	if !bc.SupportsVersion(bc.Version) {
		return registry.ErrorResponse(fmt.Sprintf("Backend out of date: Doesn't support egs version %d", bc.Version)), nil
	}

	bootBundleName, ok := bc.Inventory.BootProgram(bc.Version)
	if !ok {
		return registry.ErrorResponse(fmt.Sprintf("no boot program declared for version %d", bc.Version)), nil
	}

	bundle, err := bc.Inventory.Load(bootBundleName)
	if err != nil {
		return registry.ErrorResponse(err.Error()), nil
	}

	chrome, other := splitAssets(bc.Assets)

	versions := append([]uint32(nil), bc.SupportedVersions...)
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	payload := map[string]any{
		"namespace":     bc.Channel,
		"assets":        other,
		"chrome-assets": chrome,
		"supports":      versions,
		"boot":          []any{bc.Channel, bundle.Name},
		"hi":            bc.Channel,
		"lo":            loPort(bc.Channel),
	}

	encoded, err := wire.Marshal(payload)
	if err != nil {
		return registry.Response{}, err
	}

	resp := registry.NewResponse(0, encoded)
	resp.Bundles[bootBundleName] = struct{}{}
	if bc.Tracks != nil {
		resp.Tracks.Merge(bc.Tracks)
	}
	return resp, nil
}

func splitAssets(assets map[string]Asset) (chrome, other map[string][]byte) {
	chrome = map[string][]byte{}
	other = map[string][]byte{}
	for name, a := range assets {
		if a.Chrome {
			chrome[name] = a.Data
		} else {
			other[name] = a.Data
		}
	}
	return chrome, other
}

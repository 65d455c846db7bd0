// Package delegate implements the RemoteDelegator: a boot-loaded,
// longest-prefix override table mapping a sub-command's declared
// remote_prefix to an upstream peer, batched forwarding of the diverted
// sub-commands to that peer over the same packet codec used inbound
// (an http.Client{Timeout: ...} POSTing a binary body and checking the
// status code), and merging of the peer's reply back into the outer
// packet.
package delegate

// OverrideEntry binds one sub-command prefix to the peer that owns it,
// loaded from boot configuration. The table is resolved by
// longest-prefix match, with an empty Prefix acting as the default
// rule.
type OverrideEntry struct {
	Prefix []string
	Peer   string
}

// OverrideTable resolves a sub-command's remote_prefix to the peer name
// that owns it, via longest-prefix match. An entry with an empty Prefix
// acts as the default rule, matching everything but losing to any more
// specific entry.
type OverrideTable struct {
	entries []OverrideEntry
}

// NewOverrideTable builds a table from boot-configured entries. The
// table itself is immutable after construction and safe for concurrent
// reads across every in-flight packet, matching the read-only-after-boot
// discipline every boot-time registry in this module follows.
func NewOverrideTable(entries []OverrideEntry) *OverrideTable {
	return &OverrideTable{entries: append([]OverrideEntry(nil), entries...)}
}

// Resolve returns the peer name owning prefix, choosing the entry whose
// Prefix is the longest match against it.
func (t *OverrideTable) Resolve(prefix []string) (peer string, ok bool) {
	if t == nil {
		return "", false
	}

	bestLen := -1
	for _, e := range t.entries {
		if !isPrefixOf(e.Prefix, prefix) {
			continue
		}
		if len(e.Prefix) > bestLen {
			bestLen = len(e.Prefix)
			peer = e.Peer
			ok = true
		}
	}
	return peer, ok
}

func isPrefixOf(candidate, full []string) bool {
	if len(candidate) > len(full) {
		return false
	}
	for i, part := range candidate {
		if full[i] != part {
			return false
		}
	}
	return true
}

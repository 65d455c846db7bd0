package tracks

import (
	"sort"

	"github.com/ensembl-io/genoverse-backend/pkg/dataalg"
	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// wireDumper holds the six deduplication tables (switches, programs,
// tags, channels, keys, values) built once per dump and
// shared by every track/expansion being flattened, mirroring
// TracksDump in the Python original.
type wireDumper struct {
	switchMapping  map[string]int
	programMapping map[string]int
	tagMapping     map[string]int
	channelMapping map[string]int
	keyMapping     map[string]int
	valueMapping   map[string]int

	switchTree  []any
	programList []string
	tagList     []string
	channelTree []any
	keyList     []string
	valueList   []any
}

// DumpForWire renders the registry into the flattened wire shape: a base
// table (omitted entirely if there are no tracks) followed by any cooked remote
// fragments, matching Tracks.dump_for_wire in the original.
func (t *Tracks) DumpForWire() ([]any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []any

	if len(t.tracks) > 0 {
		base, err := t.dumpBase()
		if err != nil {
			return nil, err
		}
		out = append(out, base)
	}

	for _, frag := range t.cooked {
		out = append(out, frag)
	}

	return out, nil
}

func (t *Tracks) dumpBase() (map[string]any, error) {
	switches := map[string]bool{}
	switchOf := map[string][]string{}
	programs := map[string]bool{}
	tags := map[string]bool{}
	channels := map[string]bool{}
	channelOf := map[string][]string{}
	keys := map[string]bool{}
	valueKeys := map[string]bool{}
	valueOf := map[string]any{}

	addSwitch := func(path []string) {
		k := switchKey(path)
		switches[k] = true
		switchOf[k] = path
	}

	for _, tr := range t.tracks {
		for _, trig := range tr.Triggers {
			addSwitch(trig)
		}
		for _, s := range tr.Settings {
			addSwitch(s.Setting)
			keys[s.Name] = true
		}
		for _, v := range tr.Values {
			keys[v.Name] = true
			key, err := canonicalKey(v.Value)
			if err != nil {
				return nil, err
			}
			valueKeys[key] = true
			valueOf[key] = v.Value
		}
		programs[tr.ProgramName] = true
		programs[tr.ProgramSet] = true
		tags[tr.Tags] = true
	}
	for _, ex := range t.expansions {
		for _, trig := range ex.Triggers {
			addSwitch(trig)
		}
		channelKey := switchKey(ex.Channel)
		channels[channelKey] = true
		channelOf[channelKey] = ex.Channel
	}

	dumper := &wireDumper{}

	switchList := sortedKeys(switches)
	dumper.switchTree, dumper.switchMapping = prefixEncode(switchList, switchOf)

	channelList := sortedKeys(channels)
	dumper.channelTree, dumper.channelMapping = prefixEncode(channelList, channelOf)

	dumper.programList, dumper.programMapping = buildMap(sortedKeys(programs))
	dumper.tagList, dumper.tagMapping = buildMap(sortedKeys(tags))
	dumper.keyList, dumper.keyMapping = buildMap(sortedKeys(keys))

	valueKeyList := sortedKeys(valueKeys)
	dumper.valueMapping = make(map[string]int, len(valueKeyList))
	dumper.valueList = make([]any, len(valueKeyList))
	for i, k := range valueKeyList {
		dumper.valueMapping[k] = i
		dumper.valueList[i] = valueOf[k]
	}

	names := make([]string, 0, len(t.tracks))
	for name := range t.tracks {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]trackRow, 0, len(names))
	for _, name := range names {
		row, err := t.tracks[name].dumpRow(dumper)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].scaleStart < rows[j].scaleStart })

	data := map[string]any{}
	appendColumn := func(key string, get func(trackRow) any) {
		col := make([]any, len(rows))
		for i, r := range rows {
			col[i] = get(r)
		}
		data[key] = col
	}
	appendColumn("program_name", func(r trackRow) any { return r.programName })
	appendColumn("program_set", func(r trackRow) any { return r.programSet })
	appendColumn("tags", func(r trackRow) any { return r.tags })
	appendColumn("triggers", func(r trackRow) any { return r.triggers })
	appendColumn("values-keys", func(r trackRow) any { return r.valuesKeys })
	appendColumn("values-values", func(r trackRow) any { return r.valuesValues })
	appendColumn("settings-keys", func(r trackRow) any { return r.settingsKeys })
	appendColumn("settings-values", func(r trackRow) any { return r.settingsValues })

	programVersions := make([]int64, len(rows))
	scaleStart := make([]any, len(rows))
	scaleEnd := make([]any, len(rows))
	scaleStep := make([]any, len(rows))
	for i, r := range rows {
		programVersions[i] = r.programVersion
		scaleStart[i] = r.scaleStart
		scaleEnd[i] = r.scaleEnd
		scaleStep[i] = r.scaleStep
	}
	deltas := dataalg.Delta(programVersions)
	progVersionCol := make([]any, len(deltas))
	for i, d := range deltas {
		progVersionCol[i] = d
	}
	data["program_version"] = progVersionCol
	data["scale_start"] = scaleStart
	data["scale_end"] = scaleEnd
	data["scale_step"] = scaleStep

	expNames := make([]string, 0, len(t.expansions))
	for name := range t.expansions {
		expNames = append(expNames, name)
	}
	sort.Strings(expNames)

	type expRow struct {
		name     string
		channel  int
		triggers []any
	}
	expRows := make([]expRow, 0, len(expNames))
	for _, name := range expNames {
		ex := t.expansions[name]
		channelIdx := dumper.channelMapping[switchKey(ex.Channel)]
		triggerIdx := make([]int64, len(ex.Triggers))
		for i, trig := range ex.Triggers {
			triggerIdx[i] = int64(dumper.switchMapping[switchKey(trig)])
		}
		sort.Slice(triggerIdx, func(i, j int) bool { return triggerIdx[i] < triggerIdx[j] })
		expRows = append(expRows, expRow{name: ex.Name, channel: channelIdx, triggers: toAnySlice(dataalg.Delta(triggerIdx))})
	}
	sort.SliceStable(expRows, func(i, j int) bool { return expRows[i].channel < expRows[j].channel })

	eName := make([]any, len(expRows))
	eChannel := make([]any, len(expRows))
	eTriggers := make([]any, len(expRows))
	for i, r := range expRows {
		eName[i] = r.name
		eChannel[i] = r.channel
		eTriggers[i] = r.triggers
	}
	data["e-name"] = eName
	data["e-channel"] = eChannel
	data["e-triggers"] = eTriggers

	data["switch_idx"] = dumper.switchTree
	data["program_idx"] = toAnyStrings(dumper.programList)
	data["tag_idx"] = toAnyStrings(dumper.tagList)
	data["key_idx"] = toAnyStrings(dumper.keyList)
	data["channel_idx"] = dumper.channelTree
	data["value_idx"] = dumper.valueList

	for _, key := range []string{
		"program_name", "program_set", "program_version", "tags", "triggers",
		"values-keys", "values-values", "settings-keys", "settings-values",
		"e-name", "e-channel", "e-triggers",
	} {
		if _, ok := data[key]; !ok {
			data[key] = []any{}
		}
	}

	return data, nil
}

type trackRow struct {
	programName    int
	programSet     int
	programVersion int64
	tags           int
	triggers       []any
	valuesKeys     []any
	valuesValues   []any
	settingsKeys   []any
	settingsValues []any
	scaleStart     int64
	scaleEnd       int64
	scaleStep      int64
}

func (tr *Track) dumpRow(d *wireDumper) (trackRow, error) {
	triggerIdx := make([]int64, len(tr.Triggers))
	for i, trig := range tr.Triggers {
		triggerIdx[i] = int64(d.switchMapping[switchKey(trig)])
	}
	sort.Slice(triggerIdx, func(i, j int) bool { return triggerIdx[i] < triggerIdx[j] })

	values := append([]namedValue(nil), tr.Values...)
	sort.Slice(values, func(i, j int) bool { return values[i].Name < values[j].Name })

	valuesKeys := make([]int64, len(values))
	valuesValues := make([]any, len(values))
	for i, v := range values {
		valuesKeys[i] = int64(d.keyMapping[v.Name])
		key, err := canonicalKey(v.Value)
		if err != nil {
			return trackRow{}, err
		}
		valuesValues[i] = d.valueMapping[key]
	}

	settings := append([]namedSetting(nil), tr.Settings...)
	sort.Slice(settings, func(i, j int) bool { return settings[i].Name < settings[j].Name })

	settingsKeys := make([]int64, len(settings))
	settingsValues := make([]any, len(settings))
	for i, s := range settings {
		settingsKeys[i] = int64(d.keyMapping[s.Name])
		settingsValues[i] = d.switchMapping[switchKey(s.Setting)]
	}

	return trackRow{
		programName:    d.programMapping[tr.ProgramName],
		programSet:     d.programMapping[tr.ProgramSet],
		programVersion: tr.ProgramVersion,
		tags:           d.tagMapping[tr.Tags],
		triggers:       toAnySlice(dataalg.Delta(triggerIdx)),
		valuesKeys:     toAnySlice(dataalg.Delta(valuesKeys)),
		valuesValues:   valuesValues,
		settingsKeys:   toAnySlice(dataalg.Delta(settingsKeys)),
		settingsValues: settingsValues,
		scaleStart:     tr.Scales[0],
		scaleEnd:       tr.Scales[1],
		scaleStep:      tr.Scales[2],
	}, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func buildMap(sorted []string) ([]string, map[string]int) {
	mapping := make(map[string]int, len(sorted))
	for i, v := range sorted {
		mapping[v] = i
	}
	return sorted, mapping
}

// prefixEncode implements the shared-prefix tree used for switch paths
// and channel tuples: each entry records the change in shared-prefix
// length (the number of path elements it shares with its
// lexicographically preceding entry, minus the same count for that
// preceding entry) plus the suffix that differs from the preceding entry.
func prefixEncode(sortedKeys []string, resolve map[string][]string) ([]any, map[string]int) {
	tree := make([]any, 0, len(sortedKeys))
	mapping := make(map[string]int, len(sortedKeys))

	prevPrefixLen := 0
	var prev []string

	for i, key := range sortedKeys {
		path := resolve[key]
		prefixLen := commonPrefixLen(prev, path)
		tree = append(tree, []any{int64(prefixLen - prevPrefixLen), toAnyStrings(path[prefixLen:])})
		mapping[key] = i
		prevPrefixLen = prefixLen
		prev = path
	}

	return tree, mapping
}

func commonPrefixLen(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func canonicalKey(v any) (string, error) {
	encoded, err := wire.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func toAnySlice(values []int64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toAnyStrings(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

package metrics

import (
	"fmt"
	"strings"
)

// Telemetry is the decoded payload MetricHandler (kind=6) receives: a
// message type selecting which unmangler/formatter runs, and the raw
// column-compressed or general body.
type Telemetry struct {
	Type     string
	Payload  map[string]any
}

// DatastreamPoint is one unmangled client-datastream sample.
type DatastreamPoint struct {
	Name      string
	Key       string
	Scale     int64
	Priority  string
	NumEvents int64
	TotalSize int64
}

// ProgramRunPoint is one unmangled program-timing sample.
type ProgramRunPoint struct {
	Name   string
	Scale  int64
	Warm   bool
	NetMS  int64
	TimeMS int64
}

// UnmangleDatastream expands the column-compressed "datastream" body
// (parallel name/key arrays plus index-referencing datapoints) into one
// record per sample. Grounded on DatastreamMetricHandler.unmangle.
func UnmangleDatastream(payload map[string]any) ([]DatastreamPoint, error) {
	ds, ok := payload["datastream"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metrics: missing datastream body")
	}
	names, err := stringColumn(ds, "names")
	if err != nil {
		return nil, err
	}
	keys, err := stringColumn(ds, "keys")
	if err != nil {
		return nil, err
	}
	points, ok := ds["datapoints"].([]any)
	if !ok {
		return nil, fmt.Errorf("metrics: missing datapoints")
	}

	out := make([]DatastreamPoint, 0, len(points))
	for _, raw := range points {
		row, ok := raw.([]any)
		if !ok || len(row) < 6 {
			continue
		}
		nameIdx, _ := toInt(row[0])
		keyIdx, _ := toInt(row[1])
		scale, _ := toInt(row[2])
		batch, _ := toBool(row[3])
		numEvents, _ := toInt(row[4])
		totalSize, _ := toInt(row[5])

		priority := "realtime"
		if batch {
			priority = "batch"
		}

		out = append(out, DatastreamPoint{
			Name:      at(names, nameIdx),
			Key:       at(keys, keyIdx),
			Scale:     scale,
			Priority:  priority,
			NumEvents: numEvents,
			TotalSize: totalSize,
		})
	}
	return out, nil
}

// UnmangleProgramRun expands the column-compressed "programrun" body.
func UnmangleProgramRun(payload map[string]any) ([]ProgramRunPoint, error) {
	pr, ok := payload["programrun"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metrics: missing programrun body")
	}
	names, err := stringColumn(pr, "names")
	if err != nil {
		return nil, err
	}
	points, ok := pr["datapoints"].([]any)
	if !ok {
		return nil, fmt.Errorf("metrics: missing datapoints")
	}

	out := make([]ProgramRunPoint, 0, len(points))
	for _, raw := range points {
		row, ok := raw.([]any)
		if !ok || len(row) < 5 {
			continue
		}
		nameIdx, _ := toInt(row[0])
		scale, _ := toInt(row[1])
		warm, _ := toBool(row[2])
		netMS, _ := toInt(row[3])
		timeMS, _ := toInt(row[4])

		out = append(out, ProgramRunPoint{
			Name:   at(names, nameIdx),
			Scale:  scale,
			Warm:   warm,
			NetMS:  netMS,
			TimeMS: timeMS,
		})
	}
	return out, nil
}

// FormatDatastreamLines renders influx/telegraf line-protocol records
// for datastream samples, matching DatastreamMetricHandler.to_influx.
func FormatDatastreamLines(points []DatastreamPoint) string {
	var b strings.Builder
	for _, p := range points {
		fields := fmt.Sprintf("count=%d,bytes=%d", p.NumEvents, p.TotalSize)
		if p.NumEvents > 0 {
			fields += fmt.Sprintf(",bpc=%f", float64(p.TotalSize)/float64(p.NumEvents))
		}
		fmt.Fprintf(&b, "gb-requests,name=%s,key=%s,scale=%d,priority=%s %s\n",
			p.Name, p.Key, p.Scale, p.Priority, fields)
	}
	return b.String()
}

// FormatProgramRunLines renders line-protocol records for program-timing
// samples, matching ProgramRunMetricHandler.to_influx.
func FormatProgramRunLines(points []ProgramRunPoint) string {
	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "prog-time,name=%s,scale=%d,warm=%t net_ms=%d,time_ms=%d\n",
			p.Name, p.Scale, p.Warm, p.NetMS, p.TimeMS-p.NetMS)
	}
	return b.String()
}

// FormatGeneralLines renders the free-form "general" telemetry body
// (itself column-compressed: per-measurement tag/value dictionaries plus
// rows referencing them by index), matching GeneralMetricHandler.
func FormatGeneralLines(payload map[string]any) (string, error) {
	general, ok := payload["general"].(map[string]any)
	if !ok {
		return "", nil
	}

	var b strings.Builder
	for name, raw := range general {
		entry, ok := raw.([]any)
		if !ok || len(entry) != 4 {
			continue
		}
		tagKeys, err := stringColumn2(entry[0])
		if err != nil {
			return "", err
		}
		tagValues, err := stringColumn2(entry[1])
		if err != nil {
			return "", err
		}
		valueKeys, err := stringColumn2(entry[2])
		if err != nil {
			return "", err
		}
		rows, ok := entry[3].([]any)
		if !ok {
			continue
		}

		for _, r := range rows {
			row, ok := r.([]any)
			if !ok || len(row) != 4 {
				continue
			}
			tagKeyIdx, _ := toIntSlice(row[0])
			tagValueIdx, _ := toIntSlice(row[1])
			valueKeyIdx, _ := toIntSlice(row[2])
			valueVals, _ := toFloatSlice(row[3])

			var tagParts []string
			for i := 0; i < len(tagKeyIdx) && i < len(tagValueIdx); i++ {
				tagParts = append(tagParts, fmt.Sprintf("%s=%s", at(tagKeys, tagKeyIdx[i]), at(tagValues, tagValueIdx[i])))
			}
			var valueParts []string
			for i := 0; i < len(valueKeyIdx) && i < len(valueVals); i++ {
				valueParts = append(valueParts, fmt.Sprintf("%s=%v", at(valueKeys, valueKeyIdx[i]), valueVals[i]))
			}

			fmt.Fprintf(&b, "%s,%s %s\n", name, strings.Join(tagParts, ","), strings.Join(valueParts, ","))
		}
	}
	return b.String(), nil
}

func stringColumn(m map[string]any, key string) ([]string, error) {
	raw, ok := m[key].([]any)
	if !ok {
		return nil, fmt.Errorf("metrics: missing column %q", key)
	}
	return toStrings(raw), nil
}

func stringColumn2(v any) ([]string, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("metrics: expected string column")
	}
	return toStrings(raw), nil
}

func toStrings(raw []any) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

func at(s []string, i int64) string {
	if i < 0 || int(i) >= len(s) {
		return ""
	}
	return s[i]
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func toIntSlice(v any) ([]int64, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int64, len(raw))
	for i, item := range raw {
		n, _ := toInt(item)
		out[i] = n
	}
	return out, true
}

func toFloatSlice(v any) ([]float64, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, item := range raw {
		switch n := item.(type) {
		case float64:
			out[i] = n
		case int64:
			out[i] = float64(n)
		}
	}
	return out, true
}

package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// keys rendered in the line prefix rather than as trailing fields
var prefixKeys = map[string]bool{
	"time": true, "level": true, "msg": true,
	"run_id": true, "correlation_id": true, "component": true,
}

// Format renders one JSON log record as
// "15:04:05 INFO  [stage] message key=value ...". Lines that are not JSON
// objects are returned unchanged.
func Format(line string) string {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return line
	}

	var b strings.Builder
	if raw, ok := record["time"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			b.WriteString(ts.Local().Format(time.TimeOnly))
			b.WriteByte(' ')
		}
	}
	level, _ := record["level"].(string)
	fmt.Fprintf(&b, "%-5s ", level)
	if stage, ok := record["stage"].(string); ok && stage != "" {
		fmt.Fprintf(&b, "[%s] ", stage)
	}
	msg, _ := record["msg"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(record))
	for key := range record {
		if !prefixKeys[key] && key != "stage" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, record[key])
	}
	return b.String()
}

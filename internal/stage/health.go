package stage

import (
	"fmt"
	"sort"
)

// Health is a stage's answer to "could you run right now?". Detail names the
// missing collaborator or setting when Ready is false.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage that can run.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage that cannot run and why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Unhealthyf is Unhealthy with a formatted detail.
func Unhealthyf(name, format string, args ...any) Health {
	return Unhealthy(name, fmt.Sprintf(format, args...))
}

func (h Health) String() string {
	if h.Ready {
		return h.Name + ": ready"
	}
	return h.Name + ": " + h.Detail
}

// Unready returns the entries that are not ready, ordered by name.
func Unready(health map[string]Health) []Health {
	var out []Health
	for _, h := range health {
		if !h.Ready {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

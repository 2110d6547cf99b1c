package types

import (
	"sort"
	"time"
)

// Statistics is the flat key/value map reported for one device per poll.
type Statistics map[string]string

// Keys returns the statistic names in lexical order.
func (s Statistics) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Button describes a push-button control shown by the host.
// GracePeriod is a display hint only.
type Button struct {
	Label        string        `json:"label"`
	LabelPressed string        `json:"label_pressed"`
	GracePeriod  time.Duration `json:"grace_period"`
}

type AdvancedControllableProperty struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Button    Button    `json:"button"`
	Value     string    `json:"value"`
}

// ExtendedStatistics is the result of one poll.
type ExtendedStatistics struct {
	Statistics             Statistics                     `json:"statistics"`
	ControllableProperties []AdvancedControllableProperty `json:"controllable_properties"`
}

// ControllableProperty is a control request issued by the host.
type ControllableProperty struct {
	Property string `json:"property" binding:"required"`
	Value    any    `json:"value"`
}

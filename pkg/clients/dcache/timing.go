package dcache

import (
	"fmt"
	"strings"
	"time"
)

// Retention - how long verdicts are kept.
type Retention time.Duration

const (
	Session     Retention = Retention(time.Hour)
	Day         Retention = Retention(time.Hour * 24)
	Week        Retention = Retention(time.Hour * 24 * 7)
	NeverExpire Retention = Retention(0)
)

var retentionPresets = map[string]Retention{
	"session": Session,
	"day":     Day,
	"week":    Week,
	"never":   NeverExpire,
	"forever": NeverExpire,
}

func (r Retention) ToDuration() time.Duration {
	return time.Duration(r)
}

// Decode implements envconfig.Decoder. value is a preset name or a
// time.Duration.
func (r *Retention) Decode(value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	if preset, ok := retentionPresets[value]; ok {
		*r = preset
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fmt.Errorf("invalid retention %q", value)
	}
	*r = Retention(d)
	return nil
}

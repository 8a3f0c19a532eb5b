package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const envVar = "LOGLEVEL"

type tagLevel struct {
	tag   string
	level Level
}

var (
	tagLevelsMu sync.RWMutex
	tagLevels   []tagLevel
)

func init() {
	if err := Configure(os.Getenv(envVar)); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", envVar, err)
	}
}

// Configure parses comma-separated "tag=level" directives. A directive
// without "tag=" sets the default level. Invalid directives are skipped and
// reported in the returned error; valid ones still apply.
//
// Existing loggers pick up the new levels immediately.
func Configure(directives string) error {
	var bad []string
	for _, d := range strings.Split(directives, ",") {
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := ParseLevel(v[len(v)-1])
		if err != nil {
			bad = append(bad, fmt.Sprintf("'%s': %v", d, err))
			continue
		}
		if len(v) == 1 {
			defaultLevel = level
			DefaultLogger.Level = level
		} else {
			tagLevelsMu.Lock()
			tagLevels = append(tagLevels, tagLevel{v[0], level})
			tagLevelsMu.Unlock()
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid directives %s", strings.Join(bad, ", "))
	}
	return nil
}

func lookupTag(tag string) (Level, bool) {
	tagLevelsMu.RLock()
	defer tagLevelsMu.RUnlock()
	// Later directives win.
	for i := len(tagLevels) - 1; i >= 0; i-- {
		if tagLevels[i].tag == tag {
			return tagLevels[i].level, true
		}
	}
	return 0, false
}

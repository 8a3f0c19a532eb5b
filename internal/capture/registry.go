package capture

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Open a source based on its "source spec". A source spec is a colon-separated string
// consisting of a source tag and a source path:
//    sourceSpec = sourceTag + ":" + sourcePath
// The format of the source path is defined by the registered OpenFunc. A spec
// starting with "/dev/video" is shorthand for "v4l2:" + spec.
func Open(spec string, cfg Config) (Source, error) {
	cfg.setDefaults()

	if strings.HasPrefix(spec, "/dev/video") {
		spec = "v4l2:" + spec
	}

	// Split the spec string into tag and path
	tag, path := spec, ""
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		tag, path = spec[:i], spec[i+1:]
	}

	registryMu.RLock()
	open, found := registry[tag]
	registryMu.RUnlock()
	if !found {
		return nil, errors.Errorf("source type '%s' not registered (known: %s)",
			tag, strings.Join(Tags(), ", "))
	}

	src, err := open(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s source", tag)
	}
	log.Debug("opened %s source %q", tag, path)
	return src, nil
}

// A function used to open a specific source type.
type OpenFunc func(path string, cfg Config) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]OpenFunc{}
)

// Register a source type, identified by its "source tag". Sources of this type will be
// opened with the given function.
func Register(tag string, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[tag] = open
}

// Tags lists the registered source tags in sorted order.
func Tags() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	tags := make([]string, 0, len(registry))
	for t := range registry {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

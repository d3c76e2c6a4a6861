package processors

import (
	"fmt"
	"sort"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

var registry = map[string]Processor{}

func register(p Processor) {
	if _, dup := registry[p.Name()]; dup {
		panic("processors: duplicate processing type " + p.Name())
	}
	registry[p.Name()] = p
}

// Lookup returns the processing type registered under name.
func Lookup(name string) (Processor, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return p, nil
}

// Names returns the registered processing type names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos describes every processing type for the web UI.
func Infos() []types.ProcessingTypeInfo {
	names := Names()
	infos := make([]types.ProcessingTypeInfo, 0, len(names))
	for _, name := range names {
		p := registry[name]
		infos = append(infos, types.ProcessingTypeInfo{
			Name:          p.Name(),
			Title:         p.Title(),
			InputColumns:  p.Schema().Columns,
			OutputColumns: p.OutputColumns(),
		})
	}
	return infos
}

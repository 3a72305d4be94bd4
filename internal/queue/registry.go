package queue

import (
	"errors"
	"fmt"
	"strings"
)

// Name is a logical queue name shared by the API and the worker.
type Name string

const (
	// Default carries review photo jobs submitted through the generic route
	Default Name = "default"
	// ProfileImage carries reviewer profile image jobs
	ProfileImage Name = "profile_image"
)

// Names lists every logical queue in registration order.
func Names() []Name {
	return []Name{Default, ProfileImage}
}

var ErrUnknownQueue = errors.New("unknown queue name")

// ParseName converts a configured string into a known Name.
func ParseName(s string) (Name, error) {
	n := Name(strings.TrimSpace(s))
	for _, known := range Names() {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownQueue, s)
}

// Definition binds a logical queue to its broker queue and HTTP route.
type Definition struct {
	Name  Name
	Queue string
	Route string
}

// Registry is the validated, immutable queue mapping built at startup.
type Registry struct {
	defs map[Name]Definition
}

// NewRegistry validates defs and builds a Registry. Every known logical
// name must be present exactly once and no two entries may share a broker
// queue or route.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{defs: make(map[Name]Definition, len(defs))}
	queues := make(map[string]Name, len(defs))
	routes := make(map[string]Name, len(defs))

	for _, d := range defs {
		name, err := ParseName(string(d.Name))
		if err != nil {
			return nil, err
		}
		if _, dup := r.defs[name]; dup {
			return nil, fmt.Errorf("queue %q registered twice", name)
		}
		if d.Queue == "" {
			return nil, fmt.Errorf("queue %q: broker queue is required", name)
		}
		if !strings.HasPrefix(d.Route, "/") {
			return nil, fmt.Errorf("queue %q: route must start with '/': %q", name, d.Route)
		}
		if other, dup := queues[d.Queue]; dup {
			return nil, fmt.Errorf("queues %q and %q share broker queue %q", other, name, d.Queue)
		}
		if other, dup := routes[d.Route]; dup {
			return nil, fmt.Errorf("queues %q and %q share route %q", other, name, d.Route)
		}

		d.Name = name
		r.defs[name] = d
		queues[d.Queue] = name
		routes[d.Route] = name
	}

	for _, known := range Names() {
		if _, ok := r.defs[known]; !ok {
			return nil, fmt.Errorf("queue %q is not configured", known)
		}
	}

	return r, nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name Name) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Definitions returns all definitions in the order of Names.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, n := range Names() {
		out = append(out, r.defs[n])
	}
	return out
}

// BrokerQueues returns the physical queue names to declare on the broker.
func (r *Registry) BrokerQueues() []string {
	defs := r.Definitions()
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Queue
	}
	return out
}

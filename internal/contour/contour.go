// Package contour defines the two capabilities the harness requires from
// the external extreme-value statistics library: fitting a hierarchical
// joint model over two environmental variables, and extracting an
// environmental contour from a fitted model.
//
// The harness binds to these interfaces only, never to the library's
// concrete types. Adapters register themselves by name (the database/sql
// driver pattern), so the smoke test can be pointed at any equivalent
// library, including in-memory fakes in tests.
package contour

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Sample is one observation of the (primary, secondary) variable pair.
type Sample [2]float64

// FitOptions carries the minimal settings for a sanity-check fit; this is
// a smoke test, not a scientifically tuned analysis.
type FitOptions struct {
	PrimaryVar   string
	SecondaryVar string
}

// Model is an opaque handle to a fitted joint model, owned by the adapter
// that produced it.
type Model interface{}

// Contour is the set of coordinate pairs describing one environmental
// contour at a given return period.
type Contour struct {
	ReturnPeriodYears int
	Coordinates       []Sample
}

// Library is the capability surface of the external statistics library.
type Library interface {
	// Fit constructs and fits the library's hierarchical probabilistic
	// model over the samples.
	Fit(ctx context.Context, samples []Sample, opts FitOptions) (Model, error)

	// Contour extracts the environmental contour for one return period
	// from a model previously returned by Fit. nPoints bounds the number
	// of coordinates computed.
	Contour(ctx context.Context, model Model, returnPeriodYears int, stateDurationHours float64, nPoints int) ([]Sample, error)
}

var (
	mu       sync.RWMutex
	adapters = make(map[string]Library)
)

// Register makes a library adapter available under the given name. It
// panics on duplicate registration or a nil adapter, mirroring
// database/sql driver registration: both are programming errors.
func Register(name string, lib Library) {
	mu.Lock()
	defer mu.Unlock()
	if lib == nil {
		panic("contour: Register adapter is nil")
	}
	if _, dup := adapters[name]; dup {
		panic("contour: Register called twice for adapter " + name)
	}
	adapters[name] = lib
}

// Lookup returns the adapter registered under name. When name is empty and
// exactly one adapter is registered, that adapter is returned.
func Lookup(name string) (Library, error) {
	mu.RLock()
	defer mu.RUnlock()
	if name == "" {
		if len(adapters) == 1 {
			for _, lib := range adapters {
				return lib, nil
			}
		}
		return nil, fmt.Errorf("contour: no library adapter selected (registered: %v)", names())
	}
	lib, ok := adapters[name]
	if !ok {
		return nil, fmt.Errorf("contour: unknown library adapter %q (registered: %v)", name, names())
	}
	return lib, nil
}

// Names returns the registered adapter names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return names()
}

func names() []string {
	out := make([]string, 0, len(adapters))
	for name := range adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// unregister removes an adapter. Test-only; production adapters stay
// registered for the process lifetime.
func unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(adapters, name)
}

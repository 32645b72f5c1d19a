package processor

import (
	"sort"
	"sync"
)

var (
	registryLock         sync.Mutex
	registeredProcessors = map[string]Processor{}
)

// RegisterProcessor registers the given annotation processor under the given
// name. Registration typically happens in an init function, so that importing
// a processor's package is all it takes to enable it. Registering a second
// processor under a name that is already taken panics.
func RegisterProcessor(name string, p Processor) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, ok := registeredProcessors[name]; ok {
		panic("processor already registered: " + name)
	}
	registeredProcessors[name] = p
}

// RegisteredProcessor returns the processor registered under the given name.
func RegisteredProcessor(name string) (Processor, bool) {
	registryLock.Lock()
	defer registryLock.Unlock()
	p, ok := registeredProcessors[name]
	return p, ok
}

// ProcessorNames returns the names of all registered processors, sorted.
func ProcessorNames() []string {
	registryLock.Lock()
	defer registryLock.Unlock()
	return sortedProcessorNames()
}

// AllRegisteredProcessors returns the list of all registered processors, in
// name order.
func AllRegisteredProcessors() []Processor {
	registryLock.Lock()
	defer registryLock.Unlock()
	names := sortedProcessorNames()
	procs := make([]Processor, len(names))
	for i, name := range names {
		procs[i] = registeredProcessors[name]
	}
	return procs
}

func sortedProcessorNames() []string {
	names := make([]string, 0, len(registeredProcessors))
	for name := range registeredProcessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

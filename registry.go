package autogo

import (
	"reflect"
	"sync"
)

var (
	serviceLock sync.RWMutex
	services    map[reflect.Type][]func() interface{}
)

// RegisterService registers a provider of implementations of the given
// interface type. It is called from init functions in generated code and
// should not typically be called directly. The iface argument must be the
// reflect.Type of an interface, usually obtained via
//
//	reflect.TypeOf((*MyInterface)(nil)).Elem()
//
// RegisterService panics if iface is not an interface type.
func RegisterService(iface reflect.Type, provider func() interface{}) {
	if iface.Kind() != reflect.Interface {
		panic("autogo: RegisterService called with non-interface type " + iface.String())
	}
	serviceLock.Lock()
	defer serviceLock.Unlock()
	if services == nil {
		services = map[reflect.Type][]func() interface{}{}
	}
	services[iface] = append(services[iface], provider)
}

// ServicesFor returns providers for all registered implementations of the
// given interface type, in registration order. The returned slice is a copy;
// callers may retain it.
func ServicesFor(iface reflect.Type) []func() interface{} {
	serviceLock.RLock()
	defer serviceLock.RUnlock()
	providers := services[iface]
	if len(providers) == 0 {
		return nil
	}
	cp := make([]func() interface{}, len(providers))
	copy(cp, providers)
	return cp
}

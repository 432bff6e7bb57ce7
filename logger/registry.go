package logger

import "sync"

// named holds loggers pinned to a component name, e.g. to silence or
// redirect one connector. Names without an entry derive from the global
// logger on every Get so they follow later calls to Init.
var named sync.Map

// Register pins l to name.
func Register(name string, l *Logger) { named.Store(name, l) }

// Unregister removes the logger pinned to name.
func Unregister(name string) { named.Delete(name) }

// Get returns the logger pinned to name, or the global logger tagged with
// name as its component.
func Get(name string) *Logger {
	if l, ok := named.Load(name); ok {
		return l.(*Logger)
	}
	return GetGlobalLogger().WithComponent(name)
}

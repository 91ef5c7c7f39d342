package wasm

import (
	"sync"

	"github.com/wasmine/wasmine/internal/moduleerrors"
)

// Cluster is a named-exports scope instances are linked against: every
// instance added to a Cluster makes its exports available, by instance
// name, to every subsequently instantiated module that imports from it.
// This generalizes the original Rust runtime's linker.rs "linker" concept
// (several independently-compiled modules sharing one resolution scope) to
// the spec's module-at-a-time Instantiate operation.
type Cluster struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewCluster returns an empty Cluster.
func NewCluster() *Cluster {
	return &Cluster{instances: make(map[string]*Instance)}
}

// Add registers inst under name, failing if the name is already taken
// (spec C7 "names are unique within a Cluster").
func (c *Cluster) Add(name string, inst *Instance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.instances[name]; exists {
		return moduleerrors.Unlinkable("instance name %q already registered in cluster", name)
	}
	inst.Name = name
	c.instances[name] = inst
	return nil
}

// Lookup returns the named instance, if any.
func (c *Cluster) Lookup(name string) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instances[name]
	return inst, ok
}

// Remove deregisters an instance, releasing its name for reuse and closing
// its owned memories.
func (c *Cluster) Remove(name string) error {
	c.mu.Lock()
	inst, ok := c.instances[name]
	delete(c.instances, name)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	var firstErr error
	mems := inst.Memories
	if inst.Module != nil {
		mems = mems[inst.Module.NumImportedMemories:]
	}
	for _, m := range mems {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

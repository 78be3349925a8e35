package state

// Registry stores the state objects of one scene session, keyed by category and registry key, and keeps
// their reference counts. It is not safe for concurrent use.
type Registry struct {
	nextStateID int
	objects     [NumTypes]map[string]Object
}

// NewRegistry creates an empty registry. State ids below NumTypes are reserved for session defaults.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset drops every object and restarts the state id sequence.
func (r *Registry) Reset() {
	r.nextStateID = int(NumTypes)
	for i := range r.objects {
		r.objects[i] = make(map[string]Object)
	}
}

// Acquire returns the object stored under (t, key), allocating one when rebuild is set or none exists.
// A fresh object replaces any entry under the same key; the replaced object stays alive for the records
// still referencing it, and its eventual release leaves the newer entry in place.
//
// Parameters:
//   - t: the state category
//   - key: the registry key, already prefixed
//   - rebuild: always allocate, as during a full rebuild
//
// Returns:
//   - Object: the stored object
//   - bool: true if the object was allocated by this call
func (r *Registry) Acquire(t Type, key string, rebuild bool) (Object, bool) {
	if !rebuild {
		if o, ok := r.objects[t][key]; ok {
			return o, false
		}
	}
	o := New(t, key, r.nextStateID)
	r.nextStateID++
	r.objects[t][key] = o
	return o, true
}

// Lookup returns the object stored under (t, key).
func (r *Registry) Lookup(t Type, key string) (Object, bool) {
	o, ok := r.objects[t][key]
	return o, ok
}

// Len returns the number of objects stored for t.
func (r *Registry) Len(t Type) int {
	return len(r.objects[t])
}

// NextStateID returns the id the next allocation will receive.
func (r *Registry) NextStateID() int {
	return r.nextStateID
}

// Retain increments the reference count of o.
func (r *Registry) Retain(o Object) {
	o.base().refCount++
}

// Release decrements the reference count of o. At zero the object is removed from the registry, but
// only if the entry under its insertion key is o itself.
//
// Returns:
//   - bool: true if o was removed
func (r *Registry) Release(o Object) bool {
	b := o.base()
	if b.refCount > 0 {
		b.refCount--
	}
	if b.refCount > 0 {
		return false
	}
	m := r.objects[b.typ]
	if cur, ok := m[b.key]; ok && cur == o {
		delete(m, b.key)
		return true
	}
	return false
}

// Defaults holds one object per category with reserved state ids. They are the "current" objects of a
// session right after a full rebuild and are never stored in a Registry.
type Defaults [NumTypes]Object

// NewDefaults allocates the default objects.
func NewDefaults() Defaults {
	var d Defaults
	for t := range NumTypes {
		d[t] = New(t, DefaultKey(t), int(t))
	}
	return d
}

// ZeroRefCounts clears the reference counts of every default object.
func (d *Defaults) ZeroRefCounts() {
	for _, o := range d {
		o.base().refCount = 0
	}
}

package wl

import (
	"fmt"
	"iter"

	"github.com/Zubnix/trinity/internal/debug"
	"github.com/Zubnix/trinity/wire"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

// Handler implements the requests of a protocol interface. Handle is
// given the decoded request as one of the interface's request
// variants and should switch over them exhaustively.
type Handler interface {
	Handle(r *Resource, req Request) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(r *Resource, req Request) error

func (f HandlerFunc) Handle(r *Resource, req Request) error {
	return f(r, req)
}

// Resource is a protocol object owned by a client and bound to
// exactly one implementation.
type Resource struct {
	client    *Client
	id        uint32
	version   uint32
	iface     *Interface
	handler   Handler
	owner     *ResourceSet
	destroyed bool
	listeners []func(*Resource)
}

// Impl returns r's implementation as a T. It reports false if r is
// nil, destroyed, or implemented by something else.
func Impl[T any](r *Resource) (impl T, ok bool) {
	if r == nil || r.destroyed {
		return impl, false
	}
	impl, ok = r.handler.(T)
	return impl, ok
}

func (r *Resource) ID() uint32 {
	return r.id
}

func (r *Resource) Version() uint32 {
	return r.version
}

func (r *Resource) Client() *Client {
	return r.client
}

func (r *Resource) Interface() *Interface {
	return r.iface
}

func (r *Resource) Handler() Handler {
	return r.handler
}

// Alive reports whether r has not yet been destroyed.
func (r *Resource) Alive() bool {
	return (r != nil) && !r.destroyed
}

func (r *Resource) String() string {
	return fmt.Sprintf("%v@%v", r.iface.Name, r.id)
}

func (r *Resource) MethodName(op uint16) string {
	if int(op) >= len(r.iface.requests) {
		return fmt.Sprintf("unknown(%v)", op)
	}
	return r.iface.requests[op].name
}

func (r *Resource) Dispatch(msg *wire.MessageBuffer) error {
	op := msg.Op()
	if int(op) >= len(r.iface.requests) {
		return NewProtocolError(r.client.Display(), DisplayErrorInvalidMethod,
			"%v", wire.UnknownOpError{Interface: r.iface.Name, Type: "request", Op: op})
	}
	info := r.iface.requests[op]
	if info.since > r.version {
		return NewProtocolError(r.client.Display(), DisplayErrorInvalidMethod,
			"%v.%v requires version %v, object has version %v", r.iface.Name, info.name, info.since, r.version)
	}

	req := info.decode(r.client, msg)
	debug.Printf("[%v] %v", r.client.id, msg.Debug(r))
	if err := msg.Err(); err != nil {
		return NewProtocolError(r.client.Display(), DisplayErrorInvalidMethod,
			"decode %v.%v: %v", r.iface.Name, info.name, err)
	}

	return r.handler.Handle(r, req)
}

// OnDestroy registers f to be called when r is destroyed. Listeners
// run in registration order, exactly once.
func (r *Resource) OnDestroy(f func(*Resource)) {
	if r.destroyed {
		return
	}
	r.listeners = append(r.listeners, f)
}

// Destroy destroys r. It removes r from its owning ResourceSet and
// from the client's object table, tells the client that the ID is
// free, and then runs the destroy listeners. Destroying an already
// destroyed resource does nothing.
func (r *Resource) Destroy() {
	if r == nil || r.destroyed {
		return
	}
	r.destroyed = true

	if r.owner != nil {
		r.owner.remove(r)
		r.owner = nil
	}
	r.client.forget(r)

	listeners := r.listeners
	r.listeners = nil
	for _, f := range listeners {
		f(r)
	}
}

// PostError sends a fatal protocol error about r to its client. The
// client is disconnected once the error has been flushed.
func (r *Resource) PostError(code uint32, format string, args ...any) {
	r.client.postError(r, code, fmt.Sprintf(format, args...))
}

func (r *Resource) newEvent(op uint16, args ...any) *wire.MessageBuilder {
	mb := wire.NewMessage(r, op)
	mb.Method = r.iface.events[op]
	mb.Args = args
	return mb
}

func (r *Resource) send(mb *wire.MessageBuilder) {
	if r.destroyed {
		return
	}
	r.client.Enqueue(mb)
}

// ResourceSet is the set of live resources of one implementation.
// Resources leave the set automatically when they are destroyed.
type ResourceSet struct {
	resources []*Resource
}

// Create allocates a resource for client with the given ID and
// version, binds it to handler and records it in the set.
func (s *ResourceSet) Create(client *Client, iface *Interface, version, id uint32, handler Handler) (*Resource, error) {
	r, err := client.NewResource(iface, version, id, handler)
	if err != nil {
		return nil, err
	}
	s.Add(r)
	return r, nil
}

// Add moves r into the set.
func (s *ResourceSet) Add(r *Resource) {
	if r.destroyed {
		return
	}
	if r.owner != nil {
		r.owner.remove(r)
	}
	r.owner = s
	s.resources = append(s.resources, r)
}

func (s *ResourceSet) remove(r *Resource) {
	s.resources = sliceutils.Filter(s.resources, func(v *Resource) bool { return v != r })
}

func (s *ResourceSet) Len() int {
	return len(s.resources)
}

// All yields the live resources in creation order. The set may be
// modified during iteration.
func (s *ResourceSet) All() iter.Seq[*Resource] {
	return func(yield func(*Resource) bool) {
		for _, r := range append([]*Resource(nil), s.resources...) {
			if r.destroyed {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// ForClient returns the resources in the set that belong to client.
func (s *ResourceSet) ForClient(client *Client) []*Resource {
	if client == nil {
		return nil
	}
	return sliceutils.Filter(s.resources, func(r *Resource) bool {
		return (r.client == client) && !r.destroyed
	})
}

// Broadcast calls f for every live resource in the set.
func (s *ResourceSet) Broadcast(f func(*Resource)) {
	for r := range s.All() {
		f(r)
	}
}

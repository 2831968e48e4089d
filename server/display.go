package wl

import (
	"fmt"
	"slices"
)

// wl_display error codes.
const (
	DisplayErrorInvalidObject  = 0
	DisplayErrorInvalidMethod  = 1
	DisplayErrorNoMemory       = 2
	DisplayErrorImplementation = 3
)

// ProtocolError is a fatal error caused by a client. Handlers return
// it to have it posted to the offending client.
type ProtocolError struct {
	Object  *Resource
	Code    uint32
	Message string
}

func NewProtocolError(obj *Resource, code uint32, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Object:  obj,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (err *ProtocolError) Error() string {
	return fmt.Sprintf("%v: error %v: %v", err.Object, err.Code, err.Message)
}

// BindFunc creates the resource for a client binding a global.
type BindFunc func(client *Client, version, id uint32) error

// Global is an object advertised through wl_registry.
type Global struct {
	name    uint32
	iface   *Interface
	version uint32
	bind    BindFunc
}

func (g *Global) Name() uint32 {
	return g.name
}

// AddGlobal advertises a global to all current and future clients.
func (server *Server) AddGlobal(iface *Interface, version uint32, bind BindFunc) *Global {
	server.nextGlobal++
	g := Global{
		name:    server.nextGlobal,
		iface:   iface,
		version: version,
		bind:    bind,
	}
	server.globals = append(server.globals, &g)

	server.registries.Broadcast(func(r *Resource) {
		RegistryGlobal(r, g.name, g.iface.Name, g.version)
	})
	return &g
}

// RemoveGlobal withdraws a global.
func (server *Server) RemoveGlobal(g *Global) {
	i := slices.Index(server.globals, g)
	if i < 0 {
		return
	}
	server.globals = slices.Delete(server.globals, i, i+1)

	server.registries.Broadcast(func(r *Resource) {
		RegistryGlobalRemove(r, g.name)
	})
}

func (server *Server) global(name uint32) *Global {
	for _, g := range server.globals {
		if g.name == name {
			return g
		}
	}
	return nil
}

type displayHandler struct {
	server *Server
}

func (h displayHandler) Handle(r *Resource, req Request) error {
	switch req := req.(type) {
	case DisplaySync:
		cb, err := r.client.NewResource(CallbackInterface, 1, req.Callback, nil)
		if err != nil {
			return err
		}
		CallbackDone(cb, h.server.Serial())
		cb.Destroy()
		return nil

	case DisplayGetRegistry:
		reg, err := h.server.registries.Create(r.client, RegistryInterface, 1, req.Registry, registryHandler(h))
		if err != nil {
			return err
		}
		for _, g := range h.server.globals {
			RegistryGlobal(reg, g.name, g.iface.Name, g.version)
		}
		return nil

	default:
		return UnknownRequest(r, req)
	}
}

type registryHandler struct {
	server *Server
}

func (h registryHandler) Handle(r *Resource, req Request) error {
	switch req := req.(type) {
	case RegistryBind:
		g := h.server.global(req.Name)
		if g == nil {
			return NewProtocolError(r.client.display, DisplayErrorInvalidObject,
				"invalid global %v (%v)", req.ID.Interface, req.Name)
		}
		if g.iface.Name != req.ID.Interface {
			return NewProtocolError(r.client.display, DisplayErrorInvalidObject,
				"invalid interface for global %v: have %v, wanted %v", req.Name, req.ID.Interface, g.iface.Name)
		}
		if req.ID.Version == 0 || req.ID.Version > g.version {
			return NewProtocolError(r.client.display, DisplayErrorInvalidObject,
				"invalid version for global %v (%v): have %v, wanted %v", g.iface.Name, req.Name, req.ID.Version, g.version)
		}
		return g.bind(r.client, req.ID.Version, req.ID.ID)

	default:
		return UnknownRequest(r, req)
	}
}

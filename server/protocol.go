package wl

import (
	"github.com/Zubnix/trinity/wire"
)

// Interface describes a protocol interface: its requests, in opcode
// order, and the names of its events.
type Interface struct {
	Name     string
	Version  uint32
	requests []request
	events   []string
}

type request struct {
	name   string
	since  uint32
	decode func(c *Client, msg *wire.MessageBuffer) Request
}

// Request is a decoded request. Each protocol interface has its own
// closed set of request types.
type Request interface {
	request() *Interface
}

// UnknownRequest is returned by handlers for request variants they do
// not implement.
func UnknownRequest(r *Resource, req Request) error {
	return wire.UnknownOpError{Interface: r.iface.Name, Type: "request"}
}

func noArgs(v Request) func(*Client, *wire.MessageBuffer) Request {
	return func(*Client, *wire.MessageBuffer) Request { return v }
}

// wl_display

var DisplayInterface = &Interface{
	Name:    "wl_display",
	Version: 1,
	requests: []request{
		{name: "sync", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DisplaySync{Callback: msg.ReadUint()}
		}},
		{name: "get_registry", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DisplayGetRegistry{Registry: msg.ReadUint()}
		}},
	},
	events: []string{"error", "delete_id"},
}

type DisplaySync struct{ Callback uint32 }
type DisplayGetRegistry struct{ Registry uint32 }

func (DisplaySync) request() *Interface        { return DisplayInterface }
func (DisplayGetRegistry) request() *Interface { return DisplayInterface }

func DisplayError(r *Resource, obj *Resource, code uint32, message string) {
	mb := r.newEvent(0, obj, code, message)
	mb.WriteObject(obj)
	mb.WriteUint(code)
	mb.WriteString(message)
	r.client.out = append(r.client.out, mb)
}

func DisplayDeleteID(r *Resource, id uint32) {
	mb := r.newEvent(1, id)
	mb.WriteUint(id)
	r.send(mb)
}

// wl_registry

var RegistryInterface = &Interface{
	Name:    "wl_registry",
	Version: 1,
	requests: []request{
		{name: "bind", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return RegistryBind{Name: msg.ReadUint(), ID: msg.ReadNewID()}
		}},
	},
	events: []string{"global", "global_remove"},
}

type RegistryBind struct {
	Name uint32
	ID   wire.NewID
}

func (RegistryBind) request() *Interface { return RegistryInterface }

func RegistryGlobal(r *Resource, name uint32, iface string, version uint32) {
	mb := r.newEvent(0, name, iface, version)
	mb.WriteUint(name)
	mb.WriteString(iface)
	mb.WriteUint(version)
	r.send(mb)
}

func RegistryGlobalRemove(r *Resource, name uint32) {
	mb := r.newEvent(1, name)
	mb.WriteUint(name)
	r.send(mb)
}

// wl_callback

var CallbackInterface = &Interface{
	Name:    "wl_callback",
	Version: 1,
	events:  []string{"done"},
}

func CallbackDone(r *Resource, data uint32) {
	mb := r.newEvent(0, data)
	mb.WriteUint(data)
	r.send(mb)
}

// wl_compositor

const CompositorVersion = 4

var CompositorInterface = &Interface{
	Name:    "wl_compositor",
	Version: CompositorVersion,
	requests: []request{
		{name: "create_surface", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return CompositorCreateSurface{ID: msg.ReadUint()}
		}},
		{name: "create_region", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return CompositorCreateRegion{ID: msg.ReadUint()}
		}},
	},
}

type CompositorCreateSurface struct{ ID uint32 }
type CompositorCreateRegion struct{ ID uint32 }

func (CompositorCreateSurface) request() *Interface { return CompositorInterface }
func (CompositorCreateRegion) request() *Interface  { return CompositorInterface }

// wl_surface

const (
	SurfaceErrorInvalidScale     = 0
	SurfaceErrorInvalidTransform = 1
)

var SurfaceInterface = &Interface{
	Name:    "wl_surface",
	Version: CompositorVersion,
	requests: []request{
		{name: "destroy", decode: noArgs(SurfaceDestroy{})},
		{name: "attach", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceAttach{Buffer: c.resolve(msg.ReadObject()), X: msg.ReadInt(), Y: msg.ReadInt()}
		}},
		{name: "damage", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceDamage{X: msg.ReadInt(), Y: msg.ReadInt(), Width: msg.ReadInt(), Height: msg.ReadInt()}
		}},
		{name: "frame", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceFrame{Callback: msg.ReadUint()}
		}},
		{name: "set_opaque_region", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceSetOpaqueRegion{Region: c.resolve(msg.ReadObject())}
		}},
		{name: "set_input_region", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceSetInputRegion{Region: c.resolve(msg.ReadObject())}
		}},
		{name: "commit", decode: noArgs(SurfaceCommit{})},
		{name: "set_buffer_transform", since: 2, decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceSetBufferTransform{Transform: msg.ReadInt()}
		}},
		{name: "set_buffer_scale", since: 3, decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceSetBufferScale{Scale: msg.ReadInt()}
		}},
		{name: "damage_buffer", since: 4, decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SurfaceDamageBuffer{X: msg.ReadInt(), Y: msg.ReadInt(), Width: msg.ReadInt(), Height: msg.ReadInt()}
		}},
	},
	events: []string{"enter", "leave"},
}

type SurfaceDestroy struct{}

type SurfaceAttach struct {
	Buffer *Resource
	X, Y   int32
}

type SurfaceDamage struct{ X, Y, Width, Height int32 }
type SurfaceFrame struct{ Callback uint32 }
type SurfaceSetOpaqueRegion struct{ Region *Resource }
type SurfaceSetInputRegion struct{ Region *Resource }
type SurfaceCommit struct{}
type SurfaceSetBufferTransform struct{ Transform int32 }
type SurfaceSetBufferScale struct{ Scale int32 }
type SurfaceDamageBuffer struct{ X, Y, Width, Height int32 }

func (SurfaceDestroy) request() *Interface            { return SurfaceInterface }
func (SurfaceAttach) request() *Interface             { return SurfaceInterface }
func (SurfaceDamage) request() *Interface             { return SurfaceInterface }
func (SurfaceFrame) request() *Interface              { return SurfaceInterface }
func (SurfaceSetOpaqueRegion) request() *Interface    { return SurfaceInterface }
func (SurfaceSetInputRegion) request() *Interface     { return SurfaceInterface }
func (SurfaceCommit) request() *Interface             { return SurfaceInterface }
func (SurfaceSetBufferTransform) request() *Interface { return SurfaceInterface }
func (SurfaceSetBufferScale) request() *Interface     { return SurfaceInterface }
func (SurfaceDamageBuffer) request() *Interface       { return SurfaceInterface }

func SurfaceEnter(r *Resource, output *Resource) {
	mb := r.newEvent(0, output)
	mb.WriteObject(output)
	r.send(mb)
}

func SurfaceLeave(r *Resource, output *Resource) {
	mb := r.newEvent(1, output)
	mb.WriteObject(output)
	r.send(mb)
}

// wl_region

var RegionInterface = &Interface{
	Name:    "wl_region",
	Version: 1,
	requests: []request{
		{name: "destroy", decode: noArgs(RegionDestroy{})},
		{name: "add", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return RegionAdd{X: msg.ReadInt(), Y: msg.ReadInt(), Width: msg.ReadInt(), Height: msg.ReadInt()}
		}},
		{name: "subtract", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return RegionSubtract{X: msg.ReadInt(), Y: msg.ReadInt(), Width: msg.ReadInt(), Height: msg.ReadInt()}
		}},
	},
}

type RegionDestroy struct{}
type RegionAdd struct{ X, Y, Width, Height int32 }
type RegionSubtract struct{ X, Y, Width, Height int32 }

func (RegionDestroy) request() *Interface  { return RegionInterface }
func (RegionAdd) request() *Interface      { return RegionInterface }
func (RegionSubtract) request() *Interface { return RegionInterface }

// wl_subcompositor

const SubcompositorErrorBadSurface = 0

var SubcompositorInterface = &Interface{
	Name:    "wl_subcompositor",
	Version: 1,
	requests: []request{
		{name: "destroy", decode: noArgs(SubcompositorDestroy{})},
		{name: "get_subsurface", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SubcompositorGetSubsurface{
				ID:      msg.ReadUint(),
				Surface: c.resolve(msg.ReadObject()),
				Parent:  c.resolve(msg.ReadObject()),
			}
		}},
	},
}

type SubcompositorDestroy struct{}

type SubcompositorGetSubsurface struct {
	ID      uint32
	Surface *Resource
	Parent  *Resource
}

func (SubcompositorDestroy) request() *Interface       { return SubcompositorInterface }
func (SubcompositorGetSubsurface) request() *Interface { return SubcompositorInterface }

// wl_subsurface

const SubsurfaceErrorBadSurface = 0

var SubsurfaceInterface = &Interface{
	Name:    "wl_subsurface",
	Version: 1,
	requests: []request{
		{name: "destroy", decode: noArgs(SubsurfaceDestroy{})},
		{name: "set_position", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SubsurfaceSetPosition{X: msg.ReadInt(), Y: msg.ReadInt()}
		}},
		{name: "place_above", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SubsurfacePlaceAbove{Sibling: c.resolve(msg.ReadObject())}
		}},
		{name: "place_below", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return SubsurfacePlaceBelow{Sibling: c.resolve(msg.ReadObject())}
		}},
		{name: "set_sync", decode: noArgs(SubsurfaceSetSync{})},
		{name: "set_desync", decode: noArgs(SubsurfaceSetDesync{})},
	},
}

type SubsurfaceDestroy struct{}
type SubsurfaceSetPosition struct{ X, Y int32 }
type SubsurfacePlaceAbove struct{ Sibling *Resource }
type SubsurfacePlaceBelow struct{ Sibling *Resource }
type SubsurfaceSetSync struct{}
type SubsurfaceSetDesync struct{}

func (SubsurfaceDestroy) request() *Interface     { return SubsurfaceInterface }
func (SubsurfaceSetPosition) request() *Interface { return SubsurfaceInterface }
func (SubsurfacePlaceAbove) request() *Interface  { return SubsurfaceInterface }
func (SubsurfacePlaceBelow) request() *Interface  { return SubsurfaceInterface }
func (SubsurfaceSetSync) request() *Interface     { return SubsurfaceInterface }
func (SubsurfaceSetDesync) request() *Interface   { return SubsurfaceInterface }

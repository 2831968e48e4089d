package wl

import (
	"github.com/Zubnix/trinity/wire"
)

// wl_shell

const ShellErrorRole = 0

var ShellInterface = &Interface{
	Name:    "wl_shell",
	Version: 1,
	requests: []request{
		{name: "get_shell_surface", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellGetShellSurface{ID: msg.ReadUint(), Surface: c.resolve(msg.ReadObject())}
		}},
	},
}

type ShellGetShellSurface struct {
	ID      uint32
	Surface *Resource
}

func (ShellGetShellSurface) request() *Interface { return ShellInterface }

// wl_shell_surface

const (
	ShellSurfaceResizeNone        = 0
	ShellSurfaceResizeTop         = 1
	ShellSurfaceResizeBottom      = 2
	ShellSurfaceResizeLeft        = 4
	ShellSurfaceResizeTopLeft     = 5
	ShellSurfaceResizeBottomLeft  = 6
	ShellSurfaceResizeRight       = 8
	ShellSurfaceResizeTopRight    = 9
	ShellSurfaceResizeBottomRight = 10
)

const ShellSurfaceTransientInactive = 0x1

var ShellSurfaceInterface = &Interface{
	Name:    "wl_shell_surface",
	Version: 1,
	requests: []request{
		{name: "pong", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfacePong{Serial: msg.ReadUint()}
		}},
		{name: "move", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceMove{Seat: c.resolve(msg.ReadObject()), Serial: msg.ReadUint()}
		}},
		{name: "resize", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceResize{Seat: c.resolve(msg.ReadObject()), Serial: msg.ReadUint(), Edges: msg.ReadUint()}
		}},
		{name: "set_toplevel", decode: noArgs(ShellSurfaceSetToplevel{})},
		{name: "set_transient", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceSetTransient{
				Parent: c.resolve(msg.ReadObject()),
				X:      msg.ReadInt(),
				Y:      msg.ReadInt(),
				Flags:  msg.ReadUint(),
			}
		}},
		{name: "set_fullscreen", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceSetFullscreen{
				Method:    msg.ReadUint(),
				Framerate: msg.ReadUint(),
				Output:    c.resolve(msg.ReadObject()),
			}
		}},
		{name: "set_popup", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceSetPopup{
				Seat:   c.resolve(msg.ReadObject()),
				Serial: msg.ReadUint(),
				Parent: c.resolve(msg.ReadObject()),
				X:      msg.ReadInt(),
				Y:      msg.ReadInt(),
				Flags:  msg.ReadUint(),
			}
		}},
		{name: "set_maximized", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceSetMaximized{Output: c.resolve(msg.ReadObject())}
		}},
		{name: "set_title", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceSetTitle{Title: msg.ReadString()}
		}},
		{name: "set_class", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShellSurfaceSetClass{Class: msg.ReadString()}
		}},
	},
	events: []string{"ping", "configure", "popup_done"},
}

type ShellSurfacePong struct{ Serial uint32 }

type ShellSurfaceMove struct {
	Seat   *Resource
	Serial uint32
}

type ShellSurfaceResize struct {
	Seat   *Resource
	Serial uint32
	Edges  uint32
}

type ShellSurfaceSetToplevel struct{}

type ShellSurfaceSetTransient struct {
	Parent *Resource
	X, Y   int32
	Flags  uint32
}

type ShellSurfaceSetFullscreen struct {
	Method    uint32
	Framerate uint32
	Output    *Resource
}

type ShellSurfaceSetPopup struct {
	Seat   *Resource
	Serial uint32
	Parent *Resource
	X, Y   int32
	Flags  uint32
}

type ShellSurfaceSetMaximized struct{ Output *Resource }
type ShellSurfaceSetTitle struct{ Title string }
type ShellSurfaceSetClass struct{ Class string }

func (ShellSurfacePong) request() *Interface          { return ShellSurfaceInterface }
func (ShellSurfaceMove) request() *Interface          { return ShellSurfaceInterface }
func (ShellSurfaceResize) request() *Interface        { return ShellSurfaceInterface }
func (ShellSurfaceSetToplevel) request() *Interface   { return ShellSurfaceInterface }
func (ShellSurfaceSetTransient) request() *Interface  { return ShellSurfaceInterface }
func (ShellSurfaceSetFullscreen) request() *Interface { return ShellSurfaceInterface }
func (ShellSurfaceSetPopup) request() *Interface      { return ShellSurfaceInterface }
func (ShellSurfaceSetMaximized) request() *Interface  { return ShellSurfaceInterface }
func (ShellSurfaceSetTitle) request() *Interface      { return ShellSurfaceInterface }
func (ShellSurfaceSetClass) request() *Interface      { return ShellSurfaceInterface }

func ShellSurfacePing(r *Resource, serial uint32) {
	mb := r.newEvent(0, serial)
	mb.WriteUint(serial)
	r.send(mb)
}

func ShellSurfaceConfigure(r *Resource, edges uint32, width, height int32) {
	mb := r.newEvent(1, edges, width, height)
	mb.WriteUint(edges)
	mb.WriteInt(width)
	mb.WriteInt(height)
	r.send(mb)
}

func ShellSurfacePopupDone(r *Resource) {
	r.send(r.newEvent(2))
}

// wl_data_device_manager

const DataDeviceManagerVersion = 3

var DataDeviceManagerInterface = &Interface{
	Name:    "wl_data_device_manager",
	Version: DataDeviceManagerVersion,
	requests: []request{
		{name: "create_data_source", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DataDeviceManagerCreateDataSource{ID: msg.ReadUint()}
		}},
		{name: "get_data_device", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DataDeviceManagerGetDataDevice{ID: msg.ReadUint(), Seat: c.resolve(msg.ReadObject())}
		}},
	},
}

type DataDeviceManagerCreateDataSource struct{ ID uint32 }

type DataDeviceManagerGetDataDevice struct {
	ID   uint32
	Seat *Resource
}

func (DataDeviceManagerCreateDataSource) request() *Interface { return DataDeviceManagerInterface }
func (DataDeviceManagerGetDataDevice) request() *Interface    { return DataDeviceManagerInterface }

// wl_data_source

var DataSourceInterface = &Interface{
	Name:    "wl_data_source",
	Version: DataDeviceManagerVersion,
	requests: []request{
		{name: "offer", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DataSourceOffer{MimeType: msg.ReadString()}
		}},
		{name: "destroy", decode: noArgs(DataSourceDestroy{})},
		{name: "set_actions", since: 3, decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DataSourceSetActions{Actions: msg.ReadUint()}
		}},
	},
	events: []string{"target", "send", "cancelled", "dnd_drop_performed", "dnd_finished", "action"},
}

type DataSourceOffer struct{ MimeType string }
type DataSourceDestroy struct{}
type DataSourceSetActions struct{ Actions uint32 }

func (DataSourceOffer) request() *Interface      { return DataSourceInterface }
func (DataSourceDestroy) request() *Interface    { return DataSourceInterface }
func (DataSourceSetActions) request() *Interface { return DataSourceInterface }

func DataSourceCancelled(r *Resource) {
	r.send(r.newEvent(2))
}

// wl_data_device

var DataDeviceInterface = &Interface{
	Name:    "wl_data_device",
	Version: DataDeviceManagerVersion,
	requests: []request{
		{name: "start_drag", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DataDeviceStartDrag{
				Source: c.resolve(msg.ReadObject()),
				Origin: c.resolve(msg.ReadObject()),
				Icon:   c.resolve(msg.ReadObject()),
				Serial: msg.ReadUint(),
			}
		}},
		{name: "set_selection", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return DataDeviceSetSelection{Source: c.resolve(msg.ReadObject()), Serial: msg.ReadUint()}
		}},
		{name: "release", since: 2, decode: noArgs(DataDeviceRelease{})},
	},
	events: []string{"data_offer", "enter", "leave", "motion", "drop", "selection"},
}

type DataDeviceStartDrag struct {
	Source, Origin, Icon *Resource
	Serial               uint32
}

type DataDeviceSetSelection struct {
	Source *Resource
	Serial uint32
}

type DataDeviceRelease struct{}

func (DataDeviceStartDrag) request() *Interface    { return DataDeviceInterface }
func (DataDeviceSetSelection) request() *Interface { return DataDeviceInterface }
func (DataDeviceRelease) request() *Interface      { return DataDeviceInterface }

// DataDeviceSelection announces the current selection. Offers are not
// implemented, so the offer is always null.
func DataDeviceSelection(r *Resource) {
	mb := r.newEvent(5, nil)
	mb.WriteUint(0)
	r.send(mb)
}

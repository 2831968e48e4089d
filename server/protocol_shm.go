package wl

import (
	"os"

	"github.com/Zubnix/trinity/wire"
)

// wl_shm

const (
	ShmErrorInvalidFormat = 0
	ShmErrorInvalidStride = 1
	ShmErrorInvalidFD     = 2
)

const (
	ShmFormatARGB8888 = 0
	ShmFormatXRGB8888 = 1
)

var ShmInterface = &Interface{
	Name:    "wl_shm",
	Version: 1,
	requests: []request{
		{name: "create_pool", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShmCreatePool{ID: msg.ReadUint(), File: msg.ReadFile(), Size: msg.ReadInt()}
		}},
	},
	events: []string{"format"},
}

type ShmCreatePool struct {
	ID   uint32
	File *os.File
	Size int32
}

func (ShmCreatePool) request() *Interface { return ShmInterface }

func ShmFormat(r *Resource, format uint32) {
	mb := r.newEvent(0, format)
	mb.WriteUint(format)
	r.send(mb)
}

// wl_shm_pool

var ShmPoolInterface = &Interface{
	Name:    "wl_shm_pool",
	Version: 1,
	requests: []request{
		{name: "create_buffer", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShmPoolCreateBuffer{
				ID:     msg.ReadUint(),
				Offset: msg.ReadInt(),
				Width:  msg.ReadInt(),
				Height: msg.ReadInt(),
				Stride: msg.ReadInt(),
				Format: msg.ReadUint(),
			}
		}},
		{name: "destroy", decode: noArgs(ShmPoolDestroy{})},
		{name: "resize", decode: func(c *Client, msg *wire.MessageBuffer) Request {
			return ShmPoolResize{Size: msg.ReadInt()}
		}},
	},
}

type ShmPoolCreateBuffer struct {
	ID                            uint32
	Offset, Width, Height, Stride int32
	Format                        uint32
}

type ShmPoolDestroy struct{}
type ShmPoolResize struct{ Size int32 }

func (ShmPoolCreateBuffer) request() *Interface { return ShmPoolInterface }
func (ShmPoolDestroy) request() *Interface      { return ShmPoolInterface }
func (ShmPoolResize) request() *Interface       { return ShmPoolInterface }

// wl_buffer

var BufferInterface = &Interface{
	Name:    "wl_buffer",
	Version: 1,
	requests: []request{
		{name: "destroy", decode: noArgs(BufferDestroy{})},
	},
	events: []string{"release"},
}

type BufferDestroy struct{}

func (BufferDestroy) request() *Interface { return BufferInterface }

func BufferRelease(r *Resource) {
	r.send(r.newEvent(0))
}

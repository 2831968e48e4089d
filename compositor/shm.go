package compositor

import (
	"fmt"
	"image"
	"os"

	"deedles.dev/ximage"
	wl "github.com/Zubnix/trinity/server"
	"github.com/Zubnix/trinity/shm"
	"github.com/Zubnix/trinity/shm/shmimage"
	"golang.org/x/sys/unix"
)

func (c *Compositor) bindShm(client *wl.Client, version, id uint32) error {
	r, err := client.NewResource(wl.ShmInterface, version, id, shmGlobal{comp: c})
	if err != nil {
		return err
	}
	wl.ShmFormat(r, wl.ShmFormatARGB8888)
	wl.ShmFormat(r, wl.ShmFormatXRGB8888)
	return nil
}

type shmGlobal struct {
	comp *Compositor
}

func (g shmGlobal) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.ShmCreatePool:
		_, err := CreatePool(r, req.ID, req.File, req.Size)
		return err

	default:
		return wl.UnknownRequest(r, req)
	}
}

// Pool is a wl_shm_pool: client memory that buffers are carved out
// of. The memory stays mapped until the pool and all of its buffers
// have been destroyed.
type Pool struct {
	resource *wl.Resource
	mem      shm.Mmap
	refs     int
}

// CreatePool maps file and creates a wl_shm_pool for it. shm is the
// wl_shm resource that the request came from. The file is closed in
// all cases.
func CreatePool(shmResource *wl.Resource, id uint32, file *os.File, size int32) (*Pool, error) {
	if file == nil {
		return nil, wl.NewProtocolError(shmResource, wl.ShmErrorInvalidFD, "no file descriptor for pool")
	}
	defer file.Close()

	if size <= 0 {
		return nil, wl.NewProtocolError(shmResource, wl.ShmErrorInvalidStride, "invalid pool size %v", size)
	}

	mem, err := shm.Map(file, int(size), unix.PROT_READ)
	if err != nil {
		return nil, wl.NewProtocolError(shmResource, wl.ShmErrorInvalidFD, "mmap pool: %v", err)
	}

	pool := Pool{mem: mem, refs: 1}
	r, err := shmResource.Client().NewResource(wl.ShmPoolInterface, 1, id, &pool)
	if err != nil {
		mem.Unmap()
		return nil, err
	}
	pool.resource = r
	r.OnDestroy(func(*wl.Resource) { pool.unref() })

	return &pool, nil
}

func (pool *Pool) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.ShmPoolCreateBuffer:
		_, err := pool.CreateBuffer(req.ID, req.Offset, req.Width, req.Height, req.Stride, req.Format)
		return err

	case wl.ShmPoolDestroy:
		r.Destroy()
		return nil

	case wl.ShmPoolResize:
		return pool.Resize(req.Size)

	default:
		return wl.UnknownRequest(r, req)
	}
}

// Size returns the size of the mapped memory.
func (pool *Pool) Size() int {
	return len(pool.mem)
}

// Resize grows the pool. Shrinking is a protocol error.
func (pool *Pool) Resize(size int32) error {
	if int(size) < len(pool.mem) {
		return wl.NewProtocolError(pool.resource, wl.ShmErrorInvalidStride,
			"cannot shrink pool from %v to %v", len(pool.mem), size)
	}
	if int(size) == len(pool.mem) {
		return nil
	}

	mem, err := pool.mem.Remap(int(size))
	if err != nil {
		return wl.NewProtocolError(pool.resource, wl.ShmErrorInvalidFD, "remap pool: %v", err)
	}
	pool.mem = mem
	return nil
}

// CreateBuffer creates a wl_buffer covering part of the pool.
func (pool *Pool) CreateBuffer(id uint32, offset, width, height, stride int32, format uint32) (*Buffer, error) {
	r := pool.resource
	if (format != wl.ShmFormatARGB8888) && (format != wl.ShmFormatXRGB8888) {
		return nil, wl.NewProtocolError(r, wl.ShmErrorInvalidFormat, "unsupported format %#x", format)
	}
	if (offset < 0) || (width <= 0) || (height <= 0) || (int64(stride) < int64(width)*4) {
		return nil, wl.NewProtocolError(r, wl.ShmErrorInvalidStride,
			"invalid buffer geometry: offset %v, %vx%v, stride %v", offset, width, height, stride)
	}
	size := int64(stride) * int64(height)
	if int64(offset)+size > int64(len(pool.mem)) {
		return nil, wl.NewProtocolError(r, wl.ShmErrorInvalidStride,
			"buffer of %v bytes at offset %v does not fit in pool of %v", size, offset, len(pool.mem))
	}

	buf := Buffer{
		pool:   pool,
		offset: int(offset),
		width:  int(width),
		height: int(height),
		stride: int(stride),
		format: format,
	}
	br, err := r.Client().NewResource(wl.BufferInterface, 1, id, &buf)
	if err != nil {
		return nil, err
	}
	buf.resource = br
	pool.refs++
	br.OnDestroy(func(*wl.Resource) { pool.unref() })

	return &buf, nil
}

func (pool *Pool) unref() {
	pool.refs--
	if pool.refs > 0 {
		return
	}
	pool.mem.Unmap()
	pool.mem = nil
}

// Buffer is a wl_buffer backed by shared memory.
type Buffer struct {
	resource *wl.Resource
	pool     *Pool

	offset, width, height, stride int
	format                        uint32

	busy bool
}

func (b *Buffer) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.BufferDestroy:
		r.Destroy()
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

func (b *Buffer) Resource() *wl.Resource {
	return b.resource
}

// Alive reports whether the client still holds the buffer. The pixels
// of a dead buffer can no longer be read.
func (b *Buffer) Alive() bool {
	return b.resource.Alive()
}

func (b *Buffer) Size() image.Point {
	return image.Pt(b.width, b.height)
}

// Format returns the wl_shm format of the buffer.
func (b *Buffer) Format() uint32 {
	return b.format
}

func (b *Buffer) Stride() int {
	return b.stride
}

// Image returns a view of the buffer's pixels. The view aliases client
// memory and must not be kept past the current event.
func (b *Buffer) Image() (image.Image, error) {
	if !b.Alive() {
		return nil, fmt.Errorf("%v: buffer destroyed", b.resource)
	}

	rect := image.Rect(0, 0, b.width, b.height)
	pix := b.pool.mem[b.offset : b.offset+b.stride*b.height]
	switch b.format {
	case wl.ShmFormatARGB8888:
		if b.stride == b.width*4 {
			return &ximage.FormatImage{Format: ximage.ARGB8888, Rect: rect, Pix: pix}, nil
		}
		return &shmimage.ARGB8888{Pix: pix, Stride: b.stride, Rect: rect}, nil
	case wl.ShmFormatXRGB8888:
		return &shmimage.XRGB8888{Pix: pix, Stride: b.stride, Rect: rect}, nil
	default:
		return nil, fmt.Errorf("%v: unsupported format %#x", b.resource, b.format)
	}
}

// Release tells the client that the compositor no longer reads from
// the buffer. It only sends anything once per commit of the buffer.
func (b *Buffer) Release() {
	if !b.busy {
		return
	}
	b.busy = false
	wl.BufferRelease(b.resource)
}

// Busy reports whether the buffer has been committed but not yet
// released.
func (b *Buffer) Busy() bool {
	return b.busy
}

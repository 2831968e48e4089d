package wl

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/Zubnix/trinity/internal/debug"
	"github.com/Zubnix/trinity/internal/objstore"
	"github.com/Zubnix/trinity/internal/set"
	"github.com/Zubnix/trinity/wire"
	"github.com/sirupsen/logrus"
)

// serverIDStart is the first ID of the range that the server
// allocates from.
const serverIDStart = 0xff000000

type Client struct {
	server *Server
	id     uint64
	done   chan struct{}
	close  sync.Once
	conn   *wire.Conn
	log    *logrus.Entry

	objects   *objstore.Store[*Resource]
	zombies   set.Set[uint32]
	display   *Resource
	out       []*wire.MessageBuilder
	errPosted bool
	destroyed bool
	listeners []func(*Client)
}

func newClient(server *Server, conn *wire.Conn) *Client {
	server.nextClient++
	client := Client{
		server:  server,
		id:      server.nextClient,
		done:    make(chan struct{}),
		conn:    conn,
		objects: objstore.New[*Resource](serverIDStart),
		zombies: make(set.Set[uint32]),
	}
	client.log = server.log.WithField("client", client.id)

	client.display = &Resource{
		client:  &client,
		id:      1,
		version: 1,
		iface:   DisplayInterface,
		handler: displayHandler{server: server},
	}
	client.objects.Add(1, client.display)

	if conn != nil {
		go client.listen()
	}

	return &client
}

func (client *Client) listen() {
	defer client.close.Do(func() { close(client.done) })

	for {
		msg, err := wire.ReadMessage(client.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				client.log.WithError(err).Warn("read failed")
			}
			client.server.loop.Enqueue(func() error {
				client.Destroy()
				return nil
			})
			return
		}

		ok := client.server.loop.Enqueue(func() error { return client.dispatch(msg) })
		if !ok {
			return
		}
	}
}

func (client *Client) dispatch(msg *wire.MessageBuffer) error {
	if client.destroyed || client.errPosted {
		return nil
	}

	r, ok := client.objects.Get(msg.Sender())
	if !ok {
		if client.zombies.Has(msg.Sender()) {
			return nil
		}
		client.postError(client.display, DisplayErrorInvalidObject,
			fmt.Sprintf("invalid object %v", msg.Sender()))
		return wire.UnknownSenderIDError{Msg: msg}
	}

	err := r.Dispatch(msg)
	var perr *ProtocolError
	if errors.As(err, &perr) {
		client.postError(perr.Object, perr.Code, perr.Message)
		return nil
	}
	if err != nil {
		return fmt.Errorf("client %v: %v: %w", client.id, r, err)
	}
	return nil
}

// Server returns the server that client is connected to.
func (client *Client) Server() *Server {
	return client.server
}

func (client *Client) Display() *Resource {
	return client.display
}

// Get returns the live resource with the given ID.
func (client *Client) Get(id uint32) (*Resource, bool) {
	return client.objects.Get(id)
}

// resolve looks up an object argument. The null object and IDs that
// no longer refer to anything both resolve to nil.
func (client *Client) resolve(id uint32) *Resource {
	if id == 0 {
		return nil
	}
	r, ok := client.objects.Get(id)
	if !ok {
		return nil
	}
	return r
}

// NewResource creates a resource with the given ID. An ID of zero
// allocates one from the server's range.
func (client *Client) NewResource(iface *Interface, version, id uint32, handler Handler) (*Resource, error) {
	if id != 0 {
		if _, ok := client.objects.Get(id); ok {
			return nil, NewProtocolError(client.display, DisplayErrorInvalidObject,
				"id %v already in use", id)
		}
	}

	r := Resource{
		client:  client,
		id:      id,
		version: version,
		iface:   iface,
		handler: handler,
	}
	r.id = client.objects.Add(id, &r)
	client.zombies.Delete(r.id)
	return &r, nil
}

func (client *Client) forget(r *Resource) {
	client.objects.Delete(r.id)
	if r.id >= serverIDStart {
		return
	}

	client.zombies.Add(r.id)
	if !client.destroyed {
		DisplayDeleteID(client.display, r.id)
	}
}

// OnDestroy registers f to run when client disconnects, after all of
// its resources have been destroyed.
func (client *Client) OnDestroy(f func(*Client)) {
	client.listeners = append(client.listeners, f)
}

// Enqueue queues msg to be sent on the next flush.
func (client *Client) Enqueue(msg *wire.MessageBuilder) {
	if client.destroyed || client.errPosted {
		return
	}
	client.out = append(client.out, msg)
}

// Outgoing returns the events that are queued but not yet flushed.
func (client *Client) Outgoing() []*wire.MessageBuilder {
	return client.out
}

func (client *Client) postError(obj *Resource, code uint32, msg string) {
	if client.errPosted || client.destroyed {
		return
	}
	if obj == nil {
		obj = client.display
	}

	client.log.WithFields(logrus.Fields{"object": obj.String(), "code": code}).Warn(msg)
	DisplayError(client.display, obj, code, msg)
	client.errPosted = true
}

// Flush sends all queued events. A client that has been sent a
// protocol error is disconnected afterwards.
func (client *Client) Flush() error {
	out := client.out
	client.out = nil

	if client.conn != nil {
		for _, msg := range out {
			debug.Printf(" -> %v", msg)
			err := msg.Build(client.conn)
			if err != nil {
				client.Destroy()
				return fmt.Errorf("client %v: send %v: %w", client.id, msg.Method, err)
			}
		}
	}

	if client.errPosted {
		client.Destroy()
	}
	return nil
}

// Destroy disconnects the client. Its resources are destroyed from
// the most recently created to the oldest.
func (client *Client) Destroy() {
	if client.destroyed {
		return
	}
	client.destroyed = true

	for _, r := range client.objects.Descending() {
		if r == client.display {
			continue
		}
		r.Destroy()
	}
	client.display.destroyed = true

	for _, f := range client.listeners {
		f(client)
	}
	client.listeners = nil

	client.server.clients.Delete(client)
	if client.conn != nil {
		client.conn.Close()
	}
	client.out = nil
	client.log.Debug("disconnected")
}

func (client *Client) String() string {
	return fmt.Sprintf("client %v", client.id)
}

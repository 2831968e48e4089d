// Package wl implements the server side of the core Wayland protocol:
// client connections, the registry of globals, and the resources that
// clients create. Compositor behavior is supplied through Handlers.
package wl

import (
	"errors"
	"iter"
	"net"
	"sync"

	"github.com/Zubnix/trinity/internal/ev"
	"github.com/Zubnix/trinity/internal/set"
	"github.com/Zubnix/trinity/wire"
	"github.com/sirupsen/logrus"
)

type Server struct {
	done  chan struct{}
	close sync.Once
	lis   *wire.Listener
	loop  *ev.Loop
	log   *logrus.Entry

	clients    set.Set[*Client]
	nextClient uint64
	globals    []*Global
	nextGlobal uint32
	registries ResourceSet
	serial     uint32
	listeners  []func(*Client)
}

// NewServer creates a server that runs its work on loop. If lis is
// not nil, connections are accepted from it in the background.
func NewServer(lis *wire.Listener, loop *ev.Loop, log *logrus.Entry) *Server {
	server := Server{
		done:    make(chan struct{}),
		lis:     lis,
		loop:    loop,
		log:     log,
		clients: make(set.Set[*Client]),
	}
	if lis != nil {
		go server.listen()
	}

	return &server
}

func (server *Server) listen() {
	for {
		c, err := server.lis.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-server.done:
				return
			default:
			}
			server.loop.Enqueue(func() error { return err })
			continue
		}

		ok := server.loop.Enqueue(func() error {
			server.Connect(wire.NewConn(c))
			return nil
		})
		if !ok {
			c.Close()
			return
		}
	}
}

// Connect adds a client speaking over conn. A nil conn creates a
// detached client whose events stay queued in memory, which is
// mostly useful for tests.
func (server *Server) Connect(conn *wire.Conn) *Client {
	client := newClient(server, conn)
	server.clients.Add(client)
	client.log.Debug("connected")

	for _, f := range server.listeners {
		f(client)
	}
	return client
}

// OnClient registers f to be called for every new client.
func (server *Server) OnClient(f func(*Client)) {
	server.listeners = append(server.listeners, f)
}

// Clients yields the connected clients.
func (server *Server) Clients() iter.Seq[*Client] {
	return server.clients.All()
}

// NextSerial returns a new display-wide serial.
func (server *Server) NextSerial() uint32 {
	server.serial++
	return server.serial
}

// Serial returns the most recently issued serial.
func (server *Server) Serial() uint32 {
	return server.serial
}

// Flush sends the queued events of every client.
func (server *Server) Flush() error {
	var errs []error
	for client := range server.clients.All() {
		err := client.Flush()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting connections and disconnects every client.
func (server *Server) Close() error {
	var err error
	server.close.Do(func() {
		close(server.done)
		if server.lis != nil {
			err = server.lis.Close()
		}
		for client := range server.clients.All() {
			client.Destroy()
		}
	})
	return err
}

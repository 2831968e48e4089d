package wl

import (
	"io"
	"testing"

	"github.com/Zubnix/trinity/internal/ev"
	"github.com/Zubnix/trinity/wire"
	"github.com/sirupsen/logrus"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	loop := ev.NewLoop()
	t.Cleanup(loop.Stop)
	return NewServer(nil, loop, logrus.NewEntry(log))
}

func methods(msgs []*wire.MessageBuilder) []string {
	names := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		names = append(names, msg.Method)
	}
	return names
}

func TestDestroyExactlyOnce(t *testing.T) {
	server := testServer(t)
	client := server.Connect(nil)

	var set ResourceSet
	r, err := set.Create(client, RegionInterface, 1, 5, HandlerFunc(func(*Resource, Request) error { return nil }))
	if err != nil {
		t.Fatal(err)
	}

	var first, second int
	r.OnDestroy(func(*Resource) { first++ })
	r.OnDestroy(func(*Resource) {
		second++
		if set.Len() != 0 {
			t.Errorf("resource still in its set while listeners run")
		}
	})

	r.Destroy()
	r.Destroy()

	if first != 1 || second != 1 {
		t.Fatalf("listeners ran %v and %v times", first, second)
	}
	if _, ok := client.Get(5); ok {
		t.Fatal("destroyed resource still reachable by id")
	}
	if r.Alive() {
		t.Fatal("destroyed resource reports alive")
	}

	got := methods(client.Outgoing())
	if len(got) != 1 || got[0] != "delete_id" {
		t.Fatalf("events: %v", got)
	}
}

func TestClientDestroyTearsDownResources(t *testing.T) {
	server := testServer(t)
	client := server.Connect(nil)

	var order []uint32
	for _, id := range []uint32{2, 3, 4} {
		r, err := client.NewResource(RegionInterface, 1, id, nil)
		if err != nil {
			t.Fatal(err)
		}
		r.OnDestroy(func(r *Resource) { order = append(order, r.ID()) })
	}

	var gone bool
	client.OnDestroy(func(*Client) { gone = true })
	client.Destroy()

	if len(order) != 3 || order[0] != 4 || order[2] != 2 {
		t.Fatalf("destroy order: %v", order)
	}
	if !gone {
		t.Fatal("client destroy listener did not run")
	}
	for range server.Clients() {
		t.Fatal("client still registered")
	}
}

func TestRegistryBind(t *testing.T) {
	server := testServer(t)
	client := server.Connect(nil)

	var bound []uint32
	g := server.AddGlobal(CompositorInterface, CompositorVersion, func(c *Client, version, id uint32) error {
		bound = append(bound, version)
		_, err := c.NewResource(CompositorInterface, version, id, nil)
		return err
	})

	display := client.Display()
	err := display.Handler().Handle(display, DisplayGetRegistry{Registry: 2})
	if err != nil {
		t.Fatal(err)
	}
	reg, ok := client.Get(2)
	if !ok {
		t.Fatal("registry not created")
	}

	got := methods(client.Outgoing())
	if len(got) != 1 || got[0] != "global" {
		t.Fatalf("events after get_registry: %v", got)
	}

	err = reg.Handler().Handle(reg, RegistryBind{
		Name: g.Name(),
		ID:   wire.NewID{Interface: "wl_compositor", Version: 3, ID: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(bound) != 1 || bound[0] != 3 {
		t.Fatalf("bind calls: %v", bound)
	}

	err = reg.Handler().Handle(reg, RegistryBind{
		Name: g.Name(),
		ID:   wire.NewID{Interface: "wl_compositor", Version: CompositorVersion + 1, ID: 4},
	})
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("binding a too-new version: got %v", err)
	}
}

func TestPostedErrorDisconnects(t *testing.T) {
	server := testServer(t)
	client := server.Connect(nil)

	r, err := client.NewResource(RegionInterface, 1, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.PostError(0, "bad %v", "thing")

	got := methods(client.Outgoing())
	if len(got) != 1 || got[0] != "error" {
		t.Fatalf("events: %v", got)
	}

	client.Flush()
	if r.Alive() {
		t.Fatal("resource survived disconnect")
	}
}

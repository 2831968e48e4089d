package evdev

import (
	"encoding/binary"
	"image"
	"reflect"
	"testing"

	"github.com/Zubnix/trinity/backend"
	wl "github.com/Zubnix/trinity/server"
)

func raw(typ, code uint16, value int32) rawEvent {
	return rawEvent{Sec: 1, Usec: 500000, Type: typ, Code: code, Value: value}
}

func feedAll(t *translator, evs ...rawEvent) []backend.Event {
	var out []backend.Event
	for _, ev := range evs {
		out = append(out, t.feed(ev)...)
	}
	return out
}

func TestRelativePointer(t *testing.T) {
	var tr translator
	got := feedAll(&tr,
		raw(evRel, relX, 3),
		raw(evRel, relY, -2),
		raw(evRel, relX, 1),
		raw(evKey, btnMouse, 1),
		raw(evSyn, synReport, 0),
		raw(evRel, relWheel, -1),
		raw(evSyn, synReport, 0),
	)

	want := []backend.Event{
		backend.Button{Time: 1500, Code: btnMouse, Pressed: true},
		backend.Motion{Time: 1500, DX: 4, DY: -2},
		backend.Axis{Time: 1500, Axis: wl.PointerAxisVerticalScroll, Value: 10},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}

func TestKeysIgnoreRepeat(t *testing.T) {
	var tr translator
	got := feedAll(&tr,
		raw(evKey, keyA, 1),
		raw(evKey, keyA, 2),
		raw(evKey, keyA, 0),
		raw(evSyn, synReport, 0),
	)

	want := []backend.Event{
		backend.Key{Time: 1500, Code: keyA, Pressed: true},
		backend.Key{Time: 1500, Code: keyA, Pressed: false},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}

func TestTouchSlots(t *testing.T) {
	tr := translator{
		absolute: absTouch,
		rangeX:   [2]int32{0, 1000},
		rangeY:   [2]int32{0, 1000},
		area:     image.Rect(0, 0, 100, 50),
	}

	down := feedAll(&tr,
		raw(evAbs, absMTSlot, 0),
		raw(evAbs, absMTTrackingID, 7),
		raw(evAbs, absMTPositionX, 500),
		raw(evAbs, absMTPositionY, 200),
		raw(evKey, btnTouch, 1),
		raw(evSyn, synReport, 0),
	)
	want := []backend.Event{
		backend.TouchDown{Time: 1500, ID: 7, X: 50, Y: 10},
		backend.TouchFrame{},
	}
	if !reflect.DeepEqual(down, want) {
		t.Fatalf("down: got %#v", down)
	}

	motion := feedAll(&tr,
		raw(evAbs, absMTPositionX, 600),
		raw(evSyn, synReport, 0),
	)
	want = []backend.Event{
		backend.TouchMotion{Time: 1500, ID: 7, X: 60, Y: 10},
		backend.TouchFrame{},
	}
	if !reflect.DeepEqual(motion, want) {
		t.Fatalf("motion: got %#v", motion)
	}

	up := feedAll(&tr,
		raw(evAbs, absMTTrackingID, -1),
		raw(evSyn, synReport, 0),
	)
	want = []backend.Event{
		backend.TouchUp{Time: 1500, ID: 7},
		backend.TouchFrame{},
	}
	if !reflect.DeepEqual(up, want) {
		t.Fatalf("up: got %#v", up)
	}
}

func TestDroppedEvents(t *testing.T) {
	tr := translator{absolute: absTouch}

	feedAll(&tr,
		raw(evAbs, absMTTrackingID, 1),
		raw(evSyn, synReport, 0),
	)
	got := feedAll(&tr,
		raw(evRel, relX, 5),
		raw(evSyn, synDropped, 0),
		raw(evRel, relX, 5),
		raw(evSyn, synReport, 0),
		raw(evRel, relY, 1),
		raw(evSyn, synReport, 0),
	)

	want := []backend.Event{
		backend.TouchCancel{},
		backend.Motion{Time: 1500, DY: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}

func TestCapabilities(t *testing.T) {
	set := func(max int, on ...int) bits {
		b := newBits(max)
		for _, i := range on {
			b[i/8] |= 1 << (i % 8)
		}
		return b
	}

	tests := []struct {
		name            string
		keys, rels, abs bits
		want            uint32
	}{
		{"keyboard", set(keyMax, keyA), nil, nil, wl.SeatCapabilityKeyboard},
		{"mouse", set(keyMax, btnMouse), set(relMax, relX, relY), nil, wl.SeatCapabilityPointer},
		{"tablet", set(keyMax, btnMouse), nil, set(absMax, absX, absY), wl.SeatCapabilityPointer},
		{"touchscreen", set(keyMax, btnTouch), nil, set(absMax, absX, absY, absMTPositionX, absMTPositionY), wl.SeatCapabilityTouch},
		{"power button", set(keyMax, 116), nil, nil, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := capabilities(test.keys, test.rels, test.abs); got != test.want {
				t.Errorf("got %#x, want %#x", got, test.want)
			}
		})
	}
}

func TestDecodeRaw(t *testing.T) {
	var buf [rawEventSize]byte
	binary.NativeEndian.PutUint64(buf[0:], 2)
	binary.NativeEndian.PutUint64(buf[8:], 3000)
	binary.NativeEndian.PutUint16(buf[16:], evKey)
	binary.NativeEndian.PutUint16(buf[18:], keyA)
	binary.NativeEndian.PutUint32(buf[20:], 1)

	ev := decodeRaw(buf)
	if (ev.Type != evKey) || (ev.Code != keyA) || (ev.Value != 1) || (ev.time() != 2003) {
		t.Fatalf("decoded %+v", ev)
	}
}

package x11

import (
	"image"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/Zubnix/trinity/backend"
	"github.com/Zubnix/trinity/pointer"
	wl "github.com/Zubnix/trinity/server"
)

func TestTranslateButtons(t *testing.T) {
	tests := []struct {
		ev   xgb.Event
		want backend.Event
	}{
		{xproto.ButtonPressEvent{Detail: 1, Time: 5}, backend.Button{Time: 5, Code: uint32(pointer.ButtonLeft), Pressed: true}},
		{xproto.ButtonReleaseEvent{Detail: 1, Time: 6}, backend.Button{Time: 6, Code: uint32(pointer.ButtonLeft)}},
		{xproto.ButtonPressEvent{Detail: 2}, backend.Button{Code: uint32(pointer.ButtonMiddle), Pressed: true}},
		{xproto.ButtonPressEvent{Detail: 3}, backend.Button{Code: uint32(pointer.ButtonRight), Pressed: true}},
		{xproto.ButtonPressEvent{Detail: 4}, backend.Axis{Axis: wl.PointerAxisVerticalScroll, Value: -pointer.ScrollStep}},
		{xproto.ButtonPressEvent{Detail: 5}, backend.Axis{Axis: wl.PointerAxisVerticalScroll, Value: pointer.ScrollStep}},
		{xproto.ButtonPressEvent{Detail: 6}, backend.Axis{Axis: wl.PointerAxisHorizontalScroll, Value: -pointer.ScrollStep}},
		{xproto.ButtonPressEvent{Detail: 7}, backend.Axis{Axis: wl.PointerAxisHorizontalScroll, Value: pointer.ScrollStep}},
		{xproto.ButtonPressEvent{Detail: 9}, backend.Button{Code: uint32(pointer.ButtonExtra), Pressed: true}},
	}
	for _, test := range tests {
		got, ok := translate(test.ev, image.Point{})
		if !ok {
			t.Errorf("%+v: not translated", test.ev)
			continue
		}
		if got != test.want {
			t.Errorf("%+v: got %+v, want %+v", test.ev, got, test.want)
		}
	}
}

func TestWheelReleaseDropped(t *testing.T) {
	for _, b := range []xproto.Button{4, 5, 6, 7} {
		if ev, ok := translate(xproto.ButtonReleaseEvent{Detail: b}, image.Point{}); ok {
			t.Errorf("release of button %v translated to %+v", b, ev)
		}
	}
	if _, ok := translate(xproto.ButtonPressEvent{Detail: 12}, image.Point{}); ok {
		t.Error("unknown button translated")
	}
}

func TestTranslateKeys(t *testing.T) {
	// X keycode 38 is evdev KEY_A.
	got, ok := translate(xproto.KeyPressEvent{Detail: 38, Time: 10}, image.Point{})
	if !ok || (got != backend.Key{Time: 10, Code: 30, Pressed: true}) {
		t.Fatalf("got %+v, %v", got, ok)
	}
	got, ok = translate(xproto.KeyReleaseEvent{Detail: 38}, image.Point{})
	if !ok || (got != backend.Key{Code: 30}) {
		t.Fatalf("got %+v, %v", got, ok)
	}
	if _, ok := translate(xproto.KeyPressEvent{Detail: 3}, image.Point{}); ok {
		t.Fatal("keycode below offset translated")
	}
}

func TestMotionOffsetByOrigin(t *testing.T) {
	got, ok := translate(xproto.MotionNotifyEvent{EventX: 10, EventY: 20, Time: 3}, image.Pt(100, 50))
	want := backend.MotionAbsolute{Time: 3, X: 110, Y: 70}
	if !ok || (got != want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestStripRows(t *testing.T) {
	if n := stripRows(262140, 4*1024); n != 63 {
		t.Errorf("got %v rows", n)
	}
	if n := stripRows(100, 4*1024); n != 0 {
		t.Errorf("oversized row gave %v rows", n)
	}
}

package cursor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testImage struct {
	nominal    uint32
	w, h       uint32
	xhot, yhot uint32
	delay      uint32
	argb       uint32
}

// xcursorFile builds an Xcursor file with a comment followed by imgs.
func xcursorFile(comment string, imgs ...testImage) []byte {
	le := binary.LittleEndian
	ntoc := uint32(len(imgs) + 1)

	var chunks [][]byte
	c := le.AppendUint32(nil, 20)
	c = le.AppendUint32(c, chunkComment)
	c = le.AppendUint32(c, uint32(CommentSubtypeCopyright))
	c = le.AppendUint32(c, 1)
	c = le.AppendUint32(c, uint32(len(comment)))
	c = append(c, comment...)
	chunks = append(chunks, c)

	for _, img := range imgs {
		c := le.AppendUint32(nil, 36)
		c = le.AppendUint32(c, chunkImage)
		c = le.AppendUint32(c, img.nominal)
		c = le.AppendUint32(c, 1)
		c = le.AppendUint32(c, img.w)
		c = le.AppendUint32(c, img.h)
		c = le.AppendUint32(c, img.xhot)
		c = le.AppendUint32(c, img.yhot)
		c = le.AppendUint32(c, img.delay)
		for i := uint32(0); i < img.w*img.h; i++ {
			c = le.AppendUint32(c, img.argb)
		}
		chunks = append(chunks, c)
	}

	out := le.AppendUint32(nil, fileMagic)
	out = le.AppendUint32(out, 16)
	out = le.AppendUint32(out, 0x10000)
	out = le.AppendUint32(out, ntoc)

	pos := uint32(16 + 12*ntoc)
	subtypes := []uint32{uint32(CommentSubtypeCopyright)}
	types := []uint32{chunkComment}
	for _, img := range imgs {
		subtypes = append(subtypes, img.nominal)
		types = append(types, chunkImage)
	}
	for i, c := range chunks {
		out = le.AppendUint32(out, types[i])
		out = le.AppendUint32(out, subtypes[i])
		out = le.AppendUint32(out, pos)
		pos += uint32(len(c))
	}
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func TestDecodeClosestSize(t *testing.T) {
	data := xcursorFile("public domain",
		testImage{nominal: 16, w: 16, h: 16, argb: 0xff0000ff},
		testImage{nominal: 32, w: 32, h: 32, xhot: 4, yhot: 5, delay: 50, argb: 0x80800000},
		testImage{nominal: 32, w: 32, h: 32, xhot: 4, yhot: 5, delay: 60, argb: 0xff00ff00},
	)

	c, err := Decode(bytes.NewReader(data), 24)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Comments) != 1 || (c.Comments[0].Comment != "public domain") {
		t.Fatalf("comments: %+v", c.Comments)
	}

	// 16 and 32 are equally far from 24. The first listed size wins.
	if len(c.Frames) != 1 || (c.Frames[0].NominalSize != 16) {
		t.Fatalf("expected the single 16px frame, got %v frames", len(c.Frames))
	}

	c, err = Decode(bytes.NewReader(data), 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %v", len(c.Frames))
	}
	f := c.Frames[0]
	if (f.XHot != 4) || (f.YHot != 5) || (f.Delay != 50*time.Millisecond) {
		t.Fatalf("frame %+v", f)
	}
	if got := f.Image.RGBAAt(3, 3); got != (color.RGBA{R: 0x80, A: 0x80}) {
		t.Fatalf("pixel %v", got)
	}
	if got := c.Frames[1].Image.RGBAAt(0, 0); got != (color.RGBA{G: 0xff, A: 0xff}) {
		t.Fatalf("pixel %v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a cursor file")), 24)
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("bad magic: got %v", err)
	}

	data := xcursorFile("", testImage{nominal: 24, w: 8, h: 8})
	_, err = Decode(bytes.NewReader(data[:len(data)-10]), 24)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated: got %v", err)
	}

	_, err = Decode(bytes.NewReader(xcursorFile("only a comment")), 24)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("no images: got %v", err)
	}

	data = xcursorFile("", testImage{nominal: 24, w: 4, h: 4, xhot: 9})
	if _, err = Decode(bytes.NewReader(data), 24); err == nil {
		t.Error("hotspot outside image accepted")
	}
}

func TestLoadThemeInherits(t *testing.T) {
	dir := t.TempDir()
	write := func(path string, data []byte) {
		t.Helper()
		path = filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	arrow := xcursorFile("", testImage{nominal: 24, w: 2, h: 2, argb: 0xffffffff})
	write("base/cursors/left_ptr", arrow)
	write("base/cursors/text", arrow)
	write("base/index.theme", []byte("[Icon Theme]\nInherits=custom\n"))
	write("custom/cursors/text", xcursorFile("", testImage{nominal: 24, w: 3, h: 3}))
	write("custom/cursors/README", []byte("not a cursor"))
	write("custom/index.theme", []byte("[Icon Theme]\nInherits = base\n"))

	t.Setenv("XCURSOR_PATH", dir)

	theme, err := LoadTheme("custom", 24)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := theme.Cursor("README"); ok {
		t.Error("non-cursor file loaded")
	}
	text, ok := theme.Cursor("text")
	if !ok || (text.Frames[0].Image.Rect.Dx() != 3) {
		t.Error("inherited cursor replaced the theme's own")
	}
	if _, ok := theme.Cursor("left_ptr"); !ok {
		t.Error("inherited cursor missing")
	}
}

func TestLoadMissingTheme(t *testing.T) {
	t.Setenv("XCURSOR_PATH", t.TempDir())

	theme, err := LoadTheme("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if (theme.Name != "default") || (theme.Size != DefaultSize) || (len(theme.Cursors) != 0) {
		t.Fatalf("got %+v", theme)
	}
}

package cursor

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"slices"
	"time"
)

// ErrBadMagic indicates an unrecognized magic number when attempting
// to load a cursor.
var ErrBadMagic = errors.New("bad magic")

// ErrNoImages is returned for a cursor file without any images.
var ErrNoImages = errors.New("no images")

const (
	fileMagic = 0x72756358 // ASCII "Xcur"

	chunkComment = 0xfffe0001
	chunkImage   = 0xfffd0002

	// Limits from libXcursor.
	maxImageSize = 0x7fff
	maxTocs      = 0x10000
)

type fileToc struct {
	Type     uint32
	Subtype  uint32
	Position uint32
}

type decoder struct {
	r    io.Reader
	br   *bufio.Reader
	n    int
	err  error
	size int
}

func DecodeFile(path string, size int) (*Cursor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	return Decode(file, size)
}

// Decode reads an Xcursor file. Of the images in the file, only the
// ones whose nominal size is closest to size are kept. They make up
// the frames of the cursor in file order.
func Decode(r io.Reader, size int) (*Cursor, error) {
	d := decoder{
		r:    r,
		br:   bufio.NewReader(r),
		size: size,
	}
	return d.Decode()
}

func (d *decoder) Decode() (c *Cursor, err error) {
	if d.err != nil {
		return nil, d.err
	}

	defer d.catch(&err)

	tocs := d.header()
	best, ok := bestSize(tocs, d.size)
	if !ok {
		d.throw(ErrNoImages)
	}

	tocs = slices.DeleteFunc(tocs, func(toc fileToc) bool {
		switch toc.Type {
		case chunkComment:
			return false
		case chunkImage:
			return toc.Subtype != best
		default:
			return true
		}
	})
	slices.SortStableFunc(tocs, func(t1, t2 fileToc) int {
		return int(t1.Position) - int(t2.Position)
	})

	var cur Cursor
	for _, toc := range tocs {
		d.SeekTo(int(toc.Position))
		switch toc.Type {
		case chunkComment:
			cur.Comments = append(cur.Comments, d.comment(toc))
		case chunkImage:
			cur.Frames = append(cur.Frames, d.image(toc))
		}
	}

	return &cur, nil
}

func (d *decoder) header() []fileToc {
	magic := d.uint32()
	if magic != fileMagic {
		d.throw(ErrBadMagic)
	}
	hsize := d.uint32()
	d.uint32() // Version.
	ntoc := int(d.uint32())
	if ntoc > maxTocs {
		d.throw(fmt.Errorf("too many table entries: %v", ntoc))
	}
	d.SeekTo(int(hsize))

	tocs := make([]fileToc, 0, ntoc)
	for i := 0; i < ntoc; i++ {
		tocs = append(tocs, fileToc{
			Type:     d.uint32(),
			Subtype:  d.uint32(),
			Position: d.uint32(),
		})
	}

	return tocs
}

// bestSize returns the nominal image size in tocs that is closest to
// size. Ties go to the size that appears first.
func bestSize(tocs []fileToc, size int) (uint32, bool) {
	var best uint32
	var found bool
	for _, toc := range tocs {
		if toc.Type != chunkImage {
			continue
		}
		if !found || (distance(toc.Subtype, size) < distance(best, size)) {
			best, found = toc.Subtype, true
		}
	}
	return best, found
}

func distance(nominal uint32, size int) int {
	d := int(nominal) - size
	if d < 0 {
		return -d
	}
	return d
}

// chunk reads the header that starts every chunk and checks it
// against the table entry that pointed to it.
func (d *decoder) chunk(toc fileToc) (hsize, version uint32) {
	hsize = d.uint32()
	typ := d.uint32()
	subtype := d.uint32()
	version = d.uint32()
	if (typ != toc.Type) || (subtype != toc.Subtype) {
		d.throw(fmt.Errorf("chunk at %v does not match its table entry", toc.Position))
	}
	return hsize, version
}

func (d *decoder) comment(toc fileToc) *Comment {
	hsize, version := d.chunk(toc)
	length := d.uint32()
	d.SeekTo(int(toc.Position + hsize))

	buf := make([]byte, length)
	d.full(buf)

	return &Comment{
		Subtype: CommentSubtype(toc.Subtype),
		Version: version,
		Comment: string(buf),
	}
}

func (d *decoder) image(toc fileToc) *Image {
	hsize, version := d.chunk(toc)
	width := d.uint32()
	height := d.uint32()
	xhot := d.uint32()
	yhot := d.uint32()
	delay := d.uint32()
	if (width > maxImageSize) || (height > maxImageSize) {
		d.throw(fmt.Errorf("image too large: %vx%v", width, height))
	}
	if (xhot > width) || (yhot > height) {
		d.throw(fmt.Errorf("hotspot (%v, %v) outside of %vx%v image", xhot, yhot, width, height))
	}
	d.SeekTo(int(toc.Position + hsize))

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	d.full(img.Pix)

	// Pixels are premultiplied ARGB stored as little-endian words, so
	// only the color channels need to be swapped.
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
	}

	return &Image{
		Version:     int(version),
		NominalSize: int(toc.Subtype),
		XHot:        int(xhot),
		YHot:        int(yhot),
		Delay:       time.Duration(delay) * time.Millisecond,
		Image:       img,
	}
}

func (d *decoder) uint32() (v uint32) {
	d.throw(binary.Read(d, binary.LittleEndian, &v))
	return v
}

func (d *decoder) full(buf []byte) {
	_, err := io.ReadFull(d, buf)
	d.throw(err)
}

func (d *decoder) Read(buf []byte) (int, error) {
	n, err := d.br.Read(buf)
	d.n += n
	if errors.Is(err, io.EOF) {
		return n, err
	}
	d.throw(err)
	return n, err
}

func (d *decoder) Discard(n int) (int, error) {
	disc, err := d.br.Discard(n)
	d.throw(err)
	d.n += disc
	return disc, err
}

func (d *decoder) SeekTo(n int) error {
	diff := n - d.n
	if diff < 0 {
		d.throw(fmt.Errorf("chunk at %v overlaps previous data", n))
	}
	if diff == 0 {
		return nil
	}

	s, ok := d.r.(io.Seeker)
	if !ok || (diff <= d.br.Buffered()) {
		_, err := d.Discard(diff)
		d.throw(err)
		return nil
	}

	_, err := s.Seek(int64(n), io.SeekStart)
	d.throw(err)
	d.br.Reset(d.r)
	d.n = n
	return nil
}

type decoderError struct {
	err error
}

func (d *decoder) throw(err error) {
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		panic(decoderError{err: err})
	}
}

func (d *decoder) catch(err *error) {
	switch r := recover().(type) {
	case decoderError:
		*err = r.err
		d.err = r.err
	case nil:
		*err = d.err
	default:
		panic(r)
	}
}

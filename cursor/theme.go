// Package cursor loads Xcursor themes.
package cursor

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// DefaultSize is the nominal cursor size used when none is
// configured.
const DefaultSize = 24

// maxInheritDepth bounds chains of themes inheriting from each other.
const maxInheritDepth = 16

// libraryPaths returns the directories that themes are searched in,
// in order of preference. XCURSOR_PATH replaces the default list.
func libraryPaths() []string {
	if v, ok := os.LookupEnv("XCURSOR_PATH"); ok {
		paths := filepath.SplitList(v)
		for i, p := range paths {
			paths[i] = expandHome(p)
		}
		return paths
	}

	paths := []string{
		filepath.Join(xdg.DataHome, "icons"),
		filepath.Join(xdg.Home, ".icons"),
	}
	for _, dir := range xdg.DataDirs {
		paths = append(paths, filepath.Join(dir, "icons"))
	}
	return append(paths,
		"/usr/share/pixmaps",
		filepath.Join(xdg.Home, ".cursors"),
		"/usr/share/cursors/xorg-x11",
		"/usr/X11R6/lib/X11/icons",
	)
}

func expandHome(path string) string {
	if path == "~" {
		return xdg.Home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(xdg.Home, rest)
	}
	return path
}

// Cursor is one named cursor of a theme. It has more than one frame if
// it is animated.
type Cursor struct {
	Comments []*Comment
	Frames   []*Image
}

type Comment struct {
	Subtype CommentSubtype
	Version uint32
	Comment string
}

type CommentSubtype uint32

const (
	CommentSubtypeCopyright CommentSubtype = 1 + iota
	CommentSubtypeLicense
	CommentSubtypeOther
)

// Image is one frame of a cursor. Image holds premultiplied pixels.
type Image struct {
	Version     int
	NominalSize int
	XHot        int
	YHot        int
	Delay       time.Duration
	Image       *image.RGBA
}

type Theme struct {
	Name    string
	Size    int
	Cursors map[string]*Cursor
}

// LoadTheme loads the named theme and the themes it inherits from.
// Cursors from the theme itself take precedence over inherited ones.
// A theme that cannot be found anywhere is returned empty.
func LoadTheme(name string, size int) (*Theme, error) {
	if name == "" {
		name = "default"
	}
	if size <= 0 {
		size = DefaultSize
	}

	t := Theme{
		Name:    name,
		Size:    size,
		Cursors: make(map[string]*Cursor),
	}
	return &t, t.load(libraryPaths(), name, make(map[string]struct{}))
}

// Cursor returns the named cursor.
func (t *Theme) Cursor(name string) (*Cursor, bool) {
	c, ok := t.Cursors[name]
	return c, ok
}

func (t *Theme) load(paths []string, theme string, seen map[string]struct{}) error {
	if _, ok := seen[theme]; ok || (len(seen) >= maxInheritDepth) {
		return nil
	}
	seen[theme] = struct{}{}

	for _, path := range paths {
		dir := filepath.Join(path, theme, "cursors")
		err := t.loadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load dir %q: %w", dir, err)
		}

		inherits, err := loadInherits(filepath.Join(path, theme, "index.theme"))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load inherited themes: %w", err)
		}
		for _, theme := range inherits {
			err := t.load(paths, theme, seen)
			if err != nil {
				return fmt.Errorf("load inherited theme %q: %w", theme, err)
			}
		}

		break
	}

	return nil
}

func (t *Theme) loadDir(path string) error {
	dir, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	for _, ent := range dir {
		if _, ok := t.Cursors[ent.Name()]; ok {
			continue
		}
		if typ := ent.Type().Type(); !typ.IsRegular() && (typ != fs.ModeSymlink) {
			continue
		}

		entpath := filepath.Join(path, ent.Name())
		cur, err := DecodeFile(entpath, t.Size)
		if err != nil {
			if errors.Is(err, ErrBadMagic) || errors.Is(err, ErrNoImages) {
				continue
			}
			return fmt.Errorf("load %q: %w", entpath, err)
		}

		t.Cursors[ent.Name()] = cur
	}

	return nil
}

func loadInherits(index string) (inherits []string, err error) {
	file, err := os.Open(index)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	s := bufio.NewScanner(file)
	for s.Scan() {
		line := s.Text()
		if !strings.HasPrefix(line, "Inherits") {
			continue
		}

		_, after, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		inherits = strings.FieldsFunc(after, func(c rune) bool {
			return (c == ':') || (c == ',')
		})
		for i, v := range inherits {
			inherits[i] = strings.TrimSpace(v)
		}

		break
	}
	if err := s.Err(); err != nil {
		return inherits, fmt.Errorf("scan: %w", err)
	}

	return inherits, nil
}

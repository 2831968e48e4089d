package wire

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Zubnix/trinity/internal/set"
	"github.com/adrg/xdg"
	"golang.org/x/sys/unix"
)

const (
	readBufferSize = 4096
	maxFDsPerRead  = 28
	writeTimeout   = time.Second
)

func runtimeDir() string {
	if dir, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok {
		return dir
	}
	return xdg.RuntimeDir
}

// SocketPath resolves name to the path of a Wayland Unix domain
// socket. Relative names are resolved against the runtime directory.
// An empty name uses $WAYLAND_DISPLAY, falling back to wayland-0. It
// does not attempt to determine if the value corresponds to an actual
// socket.
func SocketPath(name string) string {
	if name == "" {
		v, ok := os.LookupEnv("WAYLAND_DISPLAY")
		if !ok {
			v = "wayland-0"
		}
		name = v
	}
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(runtimeDir(), name)
}

// NewSocketPath attempts to generate a valid path for opening a new
// socket to listen on.
func NewSocketPath() (string, error) {
	dir := runtimeDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	names := make(set.Set[int], len(entries))
	for _, ent := range entries {
		after, ok := strings.CutPrefix(ent.Name(), "wayland-")
		if !ok {
			continue
		}
		after = strings.TrimSuffix(after, ".lock")
		n, err := strconv.ParseInt(after, 10, 0)
		if err != nil {
			continue
		}
		names.Add(int(n))
	}

	var num int
	for names.Has(num) {
		num++
	}

	return filepath.Join(dir, fmt.Sprintf("wayland-%v", num)), nil
}

// Listener is a listening Wayland socket together with its lock file.
type Listener struct {
	*net.UnixListener
	lock *os.File
}

// Listen opens a Wayland socket. If name is empty, the first free
// wayland-N name in the runtime directory is used. The socket is
// guarded by a lock file next to it, in the same way as libwayland,
// so a stale socket left behind by a dead compositor is replaced.
func Listen(name string) (*Listener, error) {
	path := SocketPath(name)
	if name == "" {
		p, err := NewSocketPath()
		if err != nil {
			return nil, fmt.Errorf("find socket path: %w", err)
		}
		path = p
	}

	lock, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	err = unix.Flock(int(lock.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("lock %q: %w", path, err)
	}
	os.Remove(path)

	lis, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		lock.Close()
		os.Remove(lock.Name())
		return nil, fmt.Errorf("listen on %q: %w", path, err)
	}
	lis.SetUnlinkOnClose(true)

	return &Listener{UnixListener: lis, lock: lock}, nil
}

// Close closes the socket and removes it and its lock file.
func (lis *Listener) Close() error {
	err := lis.UnixListener.Close()
	os.Remove(lis.lock.Name())
	return errors.Join(err, lis.lock.Close())
}

// Name is the socket's name relative to the runtime directory, which
// is what clients expect to find in $WAYLAND_DISPLAY.
func (lis *Listener) Name() string {
	return filepath.Base(lis.Addr().String())
}

// Conn represents a low-level Wayland connection. Reads are buffered.
// File descriptors received alongside the data are queued in the
// order they arrive and handed out to messages as they are decoded.
type Conn struct {
	conn *net.UnixConn

	buf  []byte
	r, w int
	oob  []byte

	m   sync.Mutex
	fds []int
}

// NewConn creates a new Conn that wraps c. After this is called, use
// the provided Close method to close c instead of calling its own
// Close method.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{
		conn: c,
		buf:  make([]byte, readBufferSize),
		oob:  make([]byte, unix.CmsgSpace(maxFDsPerRead*4)),
	}
}

// Close closes the underlying connection and any file descriptors
// that were received but never claimed.
func (c *Conn) Close() error {
	c.m.Lock()
	fds := c.fds
	c.fds = nil
	c.m.Unlock()

	for _, fd := range fds {
		unix.Close(fd)
	}
	return c.conn.Close()
}

// Read implements io.Reader. It must only be called from a single
// goroutine.
func (c *Conn) Read(p []byte) (int, error) {
	if c.r == c.w {
		n, oobn, _, _, err := c.conn.ReadMsgUnix(c.buf, c.oob)
		if oobn > 0 {
			if ferr := c.readFDs(c.oob[:oobn]); ferr != nil {
				return 0, ferr
			}
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		c.r, c.w = 0, n
	}

	n := copy(p, c.buf[c.r:c.w])
	c.r += n
	return n, nil
}

func (c *Conn) readFDs(data []byte) error {
	cmsgs, err := unix.ParseSocketControlMessage(data)
	if err != nil {
		return fmt.Errorf("parse socket control messages: %w", err)
	}

	c.m.Lock()
	defer c.m.Unlock()

	for _, cmsg := range cmsgs {
		fds, err := unix.ParseUnixRights(&cmsg)
		if err != nil {
			if errors.Is(err, unix.EINVAL) {
				continue
			}
			return fmt.Errorf("parse unix control message: %w", err)
		}
		c.fds = append(c.fds, fds...)
	}
	return nil
}

func (c *Conn) popFD() (int, bool) {
	c.m.Lock()
	defer c.m.Unlock()

	if len(c.fds) == 0 {
		return -1, false
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, true
}

func (c *Conn) write(msg, oob []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, _, err := c.conn.WriteMsgUnix(msg, oob, nil)
	return err
}

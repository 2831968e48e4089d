// Package shm provides helpers for dealing with shared memory.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Create returns an anonymous memory-backed file of the given size.
// The name only shows up in /proc and is for debugging.
func Create(name string, size int) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	file := os.NewFile(uintptr(fd), name)

	err = file.Truncate(int64(size))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("truncate: %w", err)
	}

	return file, nil
}

// Seal prevents the file from being shrunk, grown or written to. It
// only works on files returned by Create.
func Seal(file *os.File) error {
	_, err := unix.FcntlInt(file.Fd(), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW|unix.F_SEAL_WRITE|unix.F_SEAL_SEAL)
	return err
}

type Mmap []byte

// Map maps size bytes of file into memory, shared with every other
// process that maps it.
func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	cerr := sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})
	if cerr != nil {
		return nil, cerr
	}

	return mmap, err
}

// Remap changes the size of the mapping. The mapping may move, so
// slices of the old mapping must not be used afterwards.
func (mmap Mmap) Remap(size int) (Mmap, error) {
	m, err := unix.Mremap(mmap, size, unix.MREMAP_MAYMOVE)
	return Mmap(m), err
}

func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap)
}

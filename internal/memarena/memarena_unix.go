//go:build unix && !linux

package memarena

import "golang.org/x/sys/unix"

// bsdBackend covers darwin/freebsd/etc: real anonymous mmap, but these
// kernels have no mremap(2), so growth maps a fresh, larger region, copies
// the live bytes across, and unmaps the old one. The net effect is the
// same "grow without losing data" contract the spec requires of the three
// regions; only the mechanism differs from Linux.
type bsdBackend struct{}

func newBackend() backend { return bsdBackend{} }

func (bsdBackend) mapAnon(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func (b bsdBackend) grow(cur []byte, newSize int) ([]byte, error) {
	fresh, err := b.mapAnon(newSize)
	if err != nil {
		return nil, err
	}
	copy(fresh, cur)
	if err := unix.Munmap(cur); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (bsdBackend) unmap(b []byte) error {
	return unix.Munmap(b)
}

//go:build !unix

package memarena

// sliceBackend covers platforms without an anonymous-mmap syscall exposed
// through golang.org/x/sys/unix (e.g. windows). It falls back to ordinary
// heap slices, mirroring the degrade-gracefully idiom of
// joshuapare-hivekit/internal/mmfile/mmfile_windows.go and
// mmfile_fallback.go, which read whole files into memory instead of
// mapping them when no native mmap path is available.
type sliceBackend struct{}

func newBackend() backend { return sliceBackend{} }

func (sliceBackend) mapAnon(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (sliceBackend) grow(cur []byte, newSize int) ([]byte, error) {
	fresh := make([]byte, newSize)
	copy(fresh, cur)
	return fresh, nil
}

func (sliceBackend) unmap(b []byte) error {
	return nil
}

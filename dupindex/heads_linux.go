//go:build linux

package dupindex

import (
	"unsafe"

	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// allocHeads returns n zeroed bucket heads. On linux they live in an
// anonymous mapping advised for transparent hugepages. Ubuntu, by
// default, activates THPs only for madvised regions.
func allocHeads(n int) ([]uint32, func() error) {
	data, err := unix.Mmap(-1, 0, n*int(unsafe.Sizeof(uint32(0))),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		log.Debug.Printf("dupindex: mmap %d buckets: %v; using the heap", n, err)
		return make([]uint32, n), func() error { return nil }
	}
	if err := unix.Madvise(data, unix.MADV_HUGEPAGE); err != nil {
		log.Debug.Printf("dupindex: madvise(MADV_HUGEPAGE): %v", err)
	}
	heads := unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), n)
	return heads, func() error { return unix.Munmap(data) }
}

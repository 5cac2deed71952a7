package build

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// nodeTable maps packed coordinates to node offsets. Both implementations
// are flat open-addressed tables with linear probing; occupancy is tracked
// through the stored offset+1 so the zero key (the 0,0 grid point) needs no
// special casing.
type nodeTable interface {
	get(key uint64) (int64, bool)
	put(key uint64, off int64)
	close() error
}

const maxLoadNum, maxLoadDen = 13, 20 // grow above 65% occupancy

// memTable is the in-memory variant: two parallel slices instead of
// per-entry heap allocations.
type memTable struct {
	keys []uint64
	vals []int64 // offset+1; 0 = empty slot
	used int
	mask uint64
}

func newMemTable(capacity int) *memTable {
	capacity = nextPow2(capacity)
	return &memTable{
		keys: make([]uint64, capacity),
		vals: make([]int64, capacity),
		mask: uint64(capacity - 1),
	}
}

func (t *memTable) get(key uint64) (int64, bool) {
	i := mix64(key) & t.mask
	for {
		if t.vals[i] == 0 {
			return 0, false
		}
		if t.keys[i] == key {
			return t.vals[i] - 1, true
		}
		i = (i + 1) & t.mask
	}
}

func (t *memTable) put(key uint64, off int64) {
	if (t.used+1)*maxLoadDen > len(t.vals)*maxLoadNum {
		t.grow()
	}
	i := mix64(key) & t.mask
	for t.vals[i] != 0 {
		i = (i + 1) & t.mask
	}
	t.keys[i] = key
	t.vals[i] = off + 1
	t.used++
}

func (t *memTable) grow() {
	old := *t
	t.keys = make([]uint64, len(old.keys)*2)
	t.vals = make([]int64, len(old.vals)*2)
	t.mask = uint64(len(t.vals) - 1)
	t.used = 0
	for i, v := range old.vals {
		if v != 0 {
			t.put(old.keys[i], v-1)
		}
	}
}

func (t *memTable) close() error { return nil }

// mmapTable keeps the same probe layout in a memory-mapped file: 16-byte
// entries of key followed by offset+1, little-endian.
type mmapTable struct {
	file *os.File
	path string
	data mmap.MMap
	used int
	mask uint64
	gen  int
}

const mmapEntrySize = 16

func newMmapTable(path string, capacityHint int) (*mmapTable, error) {
	if capacityHint < 1<<16 {
		capacityHint = 1 << 16
	}
	capacity := nextPow2(capacityHint * maxLoadDen / maxLoadNum)

	f, data, err := createMapping(path, capacity)
	if err != nil {
		return nil, err
	}
	return &mmapTable{file: f, path: path, data: data, mask: uint64(capacity - 1)}, nil
}

func createMapping(path string, capacity int) (*os.File, mmap.MMap, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Truncate(int64(capacity) * mmapEntrySize); err != nil {
		f.Close()
		return nil, nil, err
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmap node table: %w", err)
	}
	return f, data, nil
}

func (t *mmapTable) entry(i uint64) (key uint64, val int64) {
	off := i * mmapEntrySize
	key = binary.LittleEndian.Uint64(t.data[off:])
	val = int64(binary.LittleEndian.Uint64(t.data[off+8:]))
	return key, val
}

func (t *mmapTable) setEntry(i uint64, key uint64, val int64) {
	off := i * mmapEntrySize
	binary.LittleEndian.PutUint64(t.data[off:], key)
	binary.LittleEndian.PutUint64(t.data[off+8:], uint64(val))
}

func (t *mmapTable) capacity() int {
	return len(t.data) / mmapEntrySize
}

func (t *mmapTable) get(key uint64) (int64, bool) {
	i := mix64(key) & t.mask
	for {
		k, v := t.entry(i)
		if v == 0 {
			return 0, false
		}
		if k == key {
			return v - 1, true
		}
		i = (i + 1) & t.mask
	}
}

func (t *mmapTable) put(key uint64, off int64) {
	if (t.used+1)*maxLoadDen > t.capacity()*maxLoadNum {
		if err := t.grow(); err != nil {
			// Disk exhaustion on the spill file is not recoverable
			// mid-conversion.
			panic(fmt.Sprintf("grow spilled node table: %v", err))
		}
	}
	t.insert(key, off)
}

func (t *mmapTable) insert(key uint64, off int64) {
	i := mix64(key) & t.mask
	for {
		_, v := t.entry(i)
		if v == 0 {
			break
		}
		i = (i + 1) & t.mask
	}
	t.setEntry(i, key, off+1)
	t.used++
}

// grow rehashes into a fresh file; growing in place would leave stale
// entries at positions the widened mask no longer probes.
func (t *mmapTable) grow() error {
	t.gen++
	newPath := fmt.Sprintf("%s.%d", t.path, t.gen)
	newCap := t.capacity() * 2

	newFile, newData, err := createMapping(newPath, newCap)
	if err != nil {
		return err
	}

	oldFile, oldData, oldPath := t.file, t.data, t.path
	t.file, t.data, t.path = newFile, newData, newPath
	t.mask = uint64(newCap - 1)
	t.used = 0
	for i := uint64(0); i < uint64(len(oldData)/mmapEntrySize); i++ {
		key := binary.LittleEndian.Uint64(oldData[i*mmapEntrySize:])
		val := int64(binary.LittleEndian.Uint64(oldData[i*mmapEntrySize+8:]))
		if val != 0 {
			t.insert(key, val-1)
		}
	}

	if err := oldData.Unmap(); err != nil {
		return err
	}
	if err := oldFile.Close(); err != nil {
		return err
	}
	return os.Remove(oldPath)
}

func (t *mmapTable) close() error {
	if err := t.data.Unmap(); err != nil {
		t.file.Close()
		return err
	}
	if err := t.file.Close(); err != nil {
		return err
	}
	return os.Remove(t.path)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

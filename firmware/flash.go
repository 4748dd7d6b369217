//go:build tinygo

package main

import (
	"fmt"
	"machine"

	"github.com/itohio/golevel/pkg/calibration"
)

// flashStore keeps the calibration partition in the last erase block of
// the on-board flash. Reads come from a RAM mirror; every write erases
// the block and programs the whole mirror back.
type flashStore struct {
	start  int64
	mirror []byte
}

var _ calibration.ByteStore = (*flashStore)(nil)

func openFlashStore(size int) (*flashStore, error) {
	block := machine.Flash.EraseBlockSize()
	if int64(size) > block {
		return nil, fmt.Errorf("partition of %d bytes exceeds erase block of %d", size, block)
	}

	// Program granularity
	wb := machine.Flash.WriteBlockSize()
	n := (int64(size) + wb - 1) / wb * wb

	fs := &flashStore{
		start:  machine.Flash.Size() - block,
		mirror: make([]byte, n),
	}
	if _, err := machine.Flash.ReadAt(fs.mirror, fs.start); err != nil {
		return nil, fmt.Errorf("failed to read flash: %w", err)
	}
	// Erased flash reads as 0xFF; an untouched partition is all zeros.
	blank := true
	for _, b := range fs.mirror {
		if b != 0xFF {
			blank = false
			break
		}
	}
	if blank {
		clear(fs.mirror)
	}
	fs.mirror = fs.mirror[:size]
	return fs, nil
}

// Size returns the partition size in bytes.
func (f *flashStore) Size() int {
	return len(f.mirror)
}

// Read copies len(p) bytes at offset into p.
func (f *flashStore) Read(offset int, p []byte) error {
	if offset < 0 || offset+len(p) > len(f.mirror) {
		return calibration.ErrOutOfBounds
	}
	copy(p, f.mirror[offset:])
	return nil
}

// Write updates the mirror and reprograms the block.
func (f *flashStore) Write(offset int, p []byte) error {
	if offset < 0 || offset+len(p) > len(f.mirror) {
		return calibration.ErrOutOfBounds
	}
	copy(f.mirror[offset:], p)

	block := machine.Flash.EraseBlockSize()
	if err := machine.Flash.EraseBlocks(f.start/block, 1); err != nil {
		return fmt.Errorf("%w: erase: %w", calibration.ErrWrite, err)
	}
	if _, err := machine.Flash.WriteAt(f.mirror[:cap(f.mirror)], f.start); err != nil {
		return fmt.Errorf("%w: program: %w", calibration.ErrWrite, err)
	}
	return nil
}

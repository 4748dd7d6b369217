// Package calibration keeps the empty-container offsets of the sensor array
// and persists them to a durable byte store.
//
// Partition layout: 32 logical bytes starting at offset 0. Each of the 12
// offsets is stored as a little-endian int16 and captures outside that range
// are rejected. The trailing 8 bytes are zero. There is no version field.
package calibration

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/itohio/golevel/pkg/level"
)

const (
	// PartitionStart is the logical address of the offset record.
	PartitionStart = 0
	// PartitionSize is the logical size reserved for the record.
	PartitionSize = 32
	// RecordSize is the number of bytes actually used by the offsets.
	RecordSize = level.NumSensors * wordSize

	wordSize = 2
)

var (
	// ErrInit is returned when the byte store cannot hold the partition.
	ErrInit = errors.New("calibration store initialization failed")
	// ErrLoad is returned when the stored offsets cannot be read.
	ErrLoad = errors.New("calibration load failed")
	// ErrPersist is returned when captured offsets could not be written.
	ErrPersist = errors.New("calibration write failed")
	// ErrOffsetRange is returned when a diff does not fit the stored width.
	ErrOffsetRange = errors.New("offset outside storage range")
)

// DiffSource provides the diff counts a calibration captures.
type DiffSource interface {
	Diffs() level.Counts
}

// Store mirrors the offsets held by the level pipeline and owns their
// persisted copy.
type Store struct {
	bs      ByteStore
	offsets level.Offsets
	log     *slog.Logger
}

// New binds a store to a byte store. A nil logger uses slog.Default().
func New(bs ByteStore, logger *slog.Logger) (*Store, error) {
	if bs == nil {
		return nil, fmt.Errorf("%w: no byte store", ErrInit)
	}
	if size := bs.Size(); size < PartitionStart+PartitionSize {
		return nil, fmt.Errorf("%w: byte store holds %d bytes, need %d", ErrInit, size, PartitionStart+PartitionSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{bs: bs, log: logger}, nil
}

// Offsets returns the current offsets.
func (s *Store) Offsets() level.Offsets {
	return s.offsets
}

// Load reads the offsets back from the byte store.
func (s *Store) Load() (level.Offsets, error) {
	buf := make([]byte, PartitionSize)
	if err := s.bs.Read(PartitionStart, buf); err != nil {
		return level.Offsets{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	s.offsets = Decode(buf)
	s.log.Debug("calibration loaded", "offsets", s.offsets)
	return s.offsets, nil
}

// Capture takes the current diff counts as the new empty-container offsets
// and writes them through to the byte store. A diff that does not fit the
// stored width fails the capture and leaves the current offsets in place.
func (s *Store) Capture(src DiffSource) (level.Offsets, error) {
	diffs := src.Diffs()
	for i, d := range diffs {
		if d > math.MaxInt16 || d < math.MinInt16 {
			s.log.Error("calibration rejected", "sensor", i, "diff", d)
			return s.offsets, fmt.Errorf("%w: %w: sensor %d diff %d", ErrPersist, ErrOffsetRange, i, d)
		}
	}
	s.offsets = level.Offsets(diffs)

	img := Encode(s.offsets)
	if err := s.bs.Write(PartitionStart, img[:]); err != nil {
		s.log.Error("calibration write failed", "error", err)
		return s.offsets, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.log.Info("calibration captured", "offsets", s.offsets)
	return s.offsets, nil
}

// Encode renders offsets into a partition image.
func Encode(o level.Offsets) [PartitionSize]byte {
	var img [PartitionSize]byte
	for i, v := range o {
		binary.LittleEndian.PutUint16(img[i*wordSize:], uint16(saturate16(v)))
	}
	return img
}

// Decode reads offsets from a partition image. Short images leave the
// missing offsets at zero.
func Decode(img []byte) level.Offsets {
	var o level.Offsets
	for i := range o {
		at := i * wordSize
		if at+wordSize > len(img) {
			break
		}
		o[i] = int32(int16(binary.LittleEndian.Uint16(img[at:])))
	}
	return o
}

func saturate16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

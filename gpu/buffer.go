// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
)

// HeadroomMultiplier scales every allocation so that moderate growth of an
// artifact reuses the existing buffer instead of reallocating each update.
const HeadroomMultiplier = 2

// ErrReleased is returned when using a buffer after Release.
var ErrReleased = errors.New("gpu: buffer released")

// Buffer is a growable device buffer. It allocates with headroom and keeps
// its handle stable until an update outgrows the capacity, at which point
// EnsureCapacity replaces the underlying allocation.
//
// Buffer is not safe for concurrent use; the sequencer serializes access
// per artifact.
type Buffer struct {
	adapter  Adapter
	id       BufferID
	label    string
	usage    BufferUsage
	capacity uint64
}

// NewBuffer allocates a device buffer sized size*HeadroomMultiplier.
func NewBuffer(adapter Adapter, label string, size uint64, usage BufferUsage) (*Buffer, error) {
	capacity := size * HeadroomMultiplier
	id, err := adapter.CreateBuffer(label, capacity, usage)
	if err != nil {
		return nil, fmt.Errorf("allocate %q: %w", label, err)
	}
	return &Buffer{
		adapter:  adapter,
		id:       id,
		label:    label,
		usage:    usage,
		capacity: capacity,
	}, nil
}

// ID returns the current device handle. The handle changes when
// EnsureCapacity reallocates, so callers must not cache it across updates.
func (b *Buffer) ID() BufferID {
	return b.id
}

// Capacity returns the allocated size in bytes.
func (b *Buffer) Capacity() uint64 {
	return b.capacity
}

// Fits reports whether size bytes fit without reallocating.
func (b *Buffer) Fits(size uint64) bool {
	return b.id != InvalidID && size <= b.capacity
}

// EnsureCapacity grows the buffer to hold size bytes, reallocating with
// headroom when the current capacity is too small. It reports whether a
// reallocation happened; previous contents are not carried over, the caller
// re-uploads the full payload after growth.
func (b *Buffer) EnsureCapacity(size uint64) (bool, error) {
	if b.id == InvalidID {
		return false, ErrReleased
	}
	if size <= b.capacity {
		return false, nil
	}
	capacity := size * HeadroomMultiplier
	id, err := b.adapter.CreateBuffer(b.label, capacity, b.usage)
	if err != nil {
		return false, fmt.Errorf("grow %q to %d: %w", b.label, capacity, err)
	}
	b.adapter.DestroyBuffer(b.id)
	b.id = id
	b.capacity = capacity
	return true, nil
}

// Upload writes data at offset zero. The payload must fit; callers grow the
// buffer with EnsureCapacity first.
func (b *Buffer) Upload(data []byte) error {
	if b.id == InvalidID {
		return ErrReleased
	}
	if uint64(len(data)) > b.capacity {
		return fmt.Errorf("upload %q: %d bytes into %d: %w", b.label, len(data), b.capacity, ErrOutOfRange)
	}
	return b.adapter.WriteBuffer(b.id, 0, data)
}

// Release frees the device allocation. Release is idempotent; any use after
// it returns ErrReleased.
func (b *Buffer) Release() {
	if b.id == InvalidID {
		return
	}
	b.adapter.DestroyBuffer(b.id)
	b.id = InvalidID
	b.capacity = 0
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu owns device buffers for artifact geometry.
//
// The package splits in two layers. Adapter is a narrow, ID-based device
// abstraction: resources are opaque uint64 handles, so the buffer lifecycle
// logic above it runs unchanged against a mock in tests. HALAdapter is the
// production implementation over gogpu/wgpu/hal, created from a Context that
// owns the instance, device and queue.
package gpu

import "errors"

// BufferID is an opaque handle to a device buffer. Each adapter maintains
// the mapping between IDs and backend resources.
type BufferID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 0

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 1

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 2

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 3

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 4

	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 5
)

// Adapter errors.
var (
	// ErrUnknownBuffer is returned for an ID the adapter did not issue or
	// has already destroyed.
	ErrUnknownBuffer = errors.New("gpu: unknown buffer")

	// ErrOutOfRange is returned when a write would exceed the buffer.
	ErrOutOfRange = errors.New("gpu: write out of range")
)

// Adapter allocates and fills device buffers.
//
// Implementations must be safe for concurrent use: the ingestion sequencer
// uploads from producer goroutines while the renderer draws.
type Adapter interface {
	// CreateBuffer allocates a buffer of the given size in bytes.
	CreateBuffer(label string, size uint64, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases the buffer. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// WriteBuffer schedules a write of data at offset. The write lands on
	// the device no later than the next Flush.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// Flush blocks until all scheduled writes are visible to subsequent
	// device work.
	Flush() error
}

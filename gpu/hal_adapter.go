//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/worldview"
)

// HALAdapter implements Adapter over gogpu/wgpu/hal.
//
// Thread safety: all resource operations are protected by a mutex, so the
// sequencer and renderer may call it from different goroutines.
type HALAdapter struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue

	nextID  atomic.Uint64
	buffers map[BufferID]halBuffer
}

type halBuffer struct {
	buf  hal.Buffer
	size uint64
}

// NewHALAdapter wraps a HAL device and queue. The caller keeps ownership of
// both; Context ties their lifetimes together.
func NewHALAdapter(device hal.Device, queue hal.Queue) *HALAdapter {
	a := &HALAdapter{
		device:  device,
		queue:   queue,
		buffers: make(map[BufferID]halBuffer),
	}
	// 0 is InvalidID.
	a.nextID.Store(1)
	return a
}

// CreateBuffer allocates a device buffer and returns its handle.
func (a *HALAdapter) CreateBuffer(label string, size uint64, usage BufferUsage) (BufferID, error) {
	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return InvalidID, fmt.Errorf("create buffer %q: %w", label, err)
	}

	id := BufferID(a.nextID.Add(1) - 1)
	a.mu.Lock()
	a.buffers[id] = halBuffer{buf: buf, size: size}
	a.mu.Unlock()

	worldview.Logger().Debug("gpu: buffer created", "label", label, "size", size, "id", uint64(id))
	return id, nil
}

// DestroyBuffer releases the buffer. Unknown IDs are ignored.
func (a *HALAdapter) DestroyBuffer(id BufferID) {
	a.mu.Lock()
	hb, ok := a.buffers[id]
	if ok {
		delete(a.buffers, id)
	}
	a.mu.Unlock()
	if ok {
		a.device.DestroyBuffer(hb.buf)
	}
}

// WriteBuffer schedules a write through the queue.
func (a *HALAdapter) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	a.mu.RLock()
	hb, ok := a.buffers[id]
	a.mu.RUnlock()
	if !ok {
		return ErrUnknownBuffer
	}
	if offset+uint64(len(data)) > hb.size {
		return fmt.Errorf("write %d bytes at %d into %d: %w", len(data), offset, hb.size, ErrOutOfRange)
	}
	a.queue.WriteBuffer(hb.buf, offset, data)
	return nil
}

// Flush submits an empty batch with a fence and waits for it, guaranteeing
// all scheduled writes have landed.
func (a *HALAdapter) Flush() error {
	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit(nil, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if _, err := a.device.Wait(fence, 1, 5*time.Second); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	return nil
}

// HALBuffer returns the underlying HAL buffer for binding into render
// passes. It reports false for unknown or destroyed IDs.
func (a *HALAdapter) HALBuffer(id BufferID) (hal.Buffer, bool) {
	a.mu.RLock()
	hb, ok := a.buffers[id]
	a.mu.RUnlock()
	return hb.buf, ok
}

func convertBufferUsage(usage BufferUsage) gputypes.BufferUsage {
	var result gputypes.BufferUsage
	if usage&BufferUsageCopySrc != 0 {
		result |= gputypes.BufferUsageCopySrc
	}
	if usage&BufferUsageCopyDst != 0 {
		result |= gputypes.BufferUsageCopyDst
	}
	if usage&BufferUsageIndex != 0 {
		result |= gputypes.BufferUsageIndex
	}
	if usage&BufferUsageVertex != 0 {
		result |= gputypes.BufferUsageVertex
	}
	if usage&BufferUsageUniform != 0 {
		result |= gputypes.BufferUsageUniform
	}
	if usage&BufferUsageMapRead != 0 {
		result |= gputypes.BufferUsageMapRead
	}
	return result
}

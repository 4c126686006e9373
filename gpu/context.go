//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/worldview"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Context owns the HAL instance, device and queue, plus the adapter built on
// them. It is created once at startup and passed explicitly to everything
// that touches the device; there is no package-level device state, so
// producers cannot start before the GPU is ready.
type Context struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  *HALAdapter

	// externalDevice is true when the device was supplied by the caller and
	// must not be destroyed on Close.
	externalDevice bool
}

// New opens a Vulkan device, preferring discrete then integrated GPUs, and
// returns a ready Context.
func New() (*Context, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	worldview.Logger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return &Context{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		adapter:  NewHALAdapter(openDev.Device, openDev.Queue),
	}, nil
}

// FromDevice builds a Context over a device and queue owned by the caller,
// for embedding the viewer into a host that already initialized the GPU.
// Close leaves such a device alone.
func FromDevice(device hal.Device, queue hal.Queue) *Context {
	return &Context{
		device:         device,
		queue:          queue,
		adapter:        NewHALAdapter(device, queue),
		externalDevice: true,
	}
}

// Adapter returns the buffer adapter bound to this context.
func (c *Context) Adapter() *HALAdapter {
	return c.adapter
}

// Device returns the HAL device for pipeline and texture creation.
func (c *Context) Device() hal.Device {
	return c.device
}

// Queue returns the HAL submission queue.
func (c *Context) Queue() hal.Queue {
	return c.queue
}

// Close destroys the device and instance unless they were supplied
// externally. Buffers still tracked by the adapter die with the device.
func (c *Context) Close() {
	if c.externalDevice {
		return
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}

package dieseltri

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type vkVertexBuffer struct {
	device vk.Device
	buffer vk.Buffer
	memory vk.DeviceMemory
	count  uint32
}

func (b *vkVertexBuffer) VertexCount() uint32 { return b.count }

func (b *vkVertexBuffer) Destroy() {
	if b.buffer != vk.NullBuffer {
		vk.DestroyBuffer(b.device, b.buffer, nil)
		b.buffer = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.device, b.memory, nil)
		b.memory = vk.NullDeviceMemory
	}
}

// CreateVertexBuffer uploads vertices once into host visible, coherent
// memory.
func (d *vkDevice) CreateVertexBuffer(vertices []Vertex) (VertexBuffer, error) {
	data := vertexBytes(vertices)
	if len(data) == 0 {
		return nil, errors.New("no vertices")
	}

	b := &vkVertexBuffer{device: d.handle, count: uint32(len(vertices))}
	ret := vk.CreateBuffer(d.handle, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(len(data)),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &b.buffer)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "create vertex buffer")
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, b.buffer, &reqs)
	reqs.Deref()
	memType, ok := findMemoryType(&d.memory, reqs.MemoryTypeBits,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if !ok {
		b.Destroy()
		return nil, errors.New("no host visible coherent memory type for vertex buffer")
	}

	ret = vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &b.memory)
	if err := NewError(ret); err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "allocate vertex memory")
	}
	if err := NewError(vk.BindBufferMemory(d.handle, b.buffer, b.memory, 0)); err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "bind vertex memory")
	}

	var mapped unsafe.Pointer
	ret = vk.MapMemory(d.handle, b.memory, 0, vk.DeviceSize(len(data)), 0, &mapped)
	if err := NewError(ret); err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "map vertex memory")
	}
	n := vk.Memcopy(mapped, data)
	vk.UnmapMemory(d.handle, b.memory)
	if n != len(data) {
		b.Destroy()
		return nil, errors.Errorf("copied %d of %d vertex bytes", n, len(data))
	}
	Logger().Debug("vertex buffer uploaded", "vertices", b.count, "bytes", len(data))
	return b, nil
}

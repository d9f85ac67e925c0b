package dieseltri

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Vertex is the fixed vertex layout: a clip space position and a colour.
type Vertex struct {
	Pos   [2]float32
	Color [3]float32
}

var vertexSize = uint32(unsafe.Sizeof(Vertex{}))

// TriangleVertices returns the triangle, wound clockwise in Vulkan's
// y-down clip space.
func TriangleVertices() []Vertex {
	return []Vertex{
		{Pos: [2]float32{0.0, -0.5}, Color: [3]float32{1, 0, 0}},
		{Pos: [2]float32{0.5, 0.5}, Color: [3]float32{0, 1, 0}},
		{Pos: [2]float32{-0.5, 0.5}, Color: [3]float32{0, 0, 1}},
	}
}

func vertexBindings() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    vertexSize,
		InputRate: vk.VertexInputRateVertex,
	}}
}

func vertexAttributes() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
	}
}

// vertexBytes returns the raw bytes of vertices for upload.
func vertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(vertexSize))
}

package resources

import "fmt"

type VertexAttributeFormat int

const (
	VertexFormatFloat2 VertexAttributeFormat = iota
	VertexFormatFloat3
	VertexFormatFloat4
	// VertexFormatUByte4 is four unsigned integers, used for bone indices.
	VertexFormatUByte4
)

func (f VertexAttributeFormat) Size() uint32 {
	switch f {
	case VertexFormatFloat2:
		return 8
	case VertexFormatFloat3:
		return 12
	case VertexFormatFloat4:
		return 16
	case VertexFormatUByte4:
		return 4
	}
	panic(fmt.Sprintf("unknown vertex attribute format %d", int(f)))
}

type VertexAttribute struct {
	Location    uint32
	BufferIndex uint32
	Format      VertexAttributeFormat
	Offset      uint32
}

// VertexFormat is built attribute by attribute; offsets and strides are
// tracked per vertex buffer index.
type VertexFormat struct {
	Attributes []VertexAttribute
	strides    []uint32
}

func NewVertexFormat() *VertexFormat {
	return &VertexFormat{}
}

// AddAttribute appends an attribute to the given buffer. Locations are
// assigned in call order.
func (vf *VertexFormat) AddAttribute(bufferIndex uint32, format VertexAttributeFormat) *VertexFormat {
	for uint32(len(vf.strides)) <= bufferIndex {
		vf.strides = append(vf.strides, 0)
	}
	vf.Attributes = append(vf.Attributes, VertexAttribute{
		Location:    uint32(len(vf.Attributes)),
		BufferIndex: bufferIndex,
		Format:      format,
		Offset:      vf.strides[bufferIndex],
	})
	vf.strides[bufferIndex] += format.Size()
	return vf
}

func (vf *VertexFormat) BufferCount() int {
	return len(vf.strides)
}

func (vf *VertexFormat) Stride(bufferIndex uint32) uint32 {
	if int(bufferIndex) >= len(vf.strides) {
		return 0
	}
	return vf.strides[bufferIndex]
}

// BufferAttributes returns the attributes read from one buffer.
func (vf *VertexFormat) BufferAttributes(bufferIndex uint32) []VertexAttribute {
	var out []VertexAttribute
	for _, a := range vf.Attributes {
		if a.BufferIndex == bufferIndex {
			out = append(out, a)
		}
	}
	return out
}

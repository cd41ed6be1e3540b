package mesh

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/renderer"
	"github.com/spaghettifunk/marionette/engine/renderer/components"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

type drawRange struct {
	firstIndex uint32
	indexCount uint32
	material   *Material
}

// StaticMesh owns the device copy of a mesh's vertices and indices. Any
// number of animated instances may share one.
type StaticMesh struct {
	ID        uuid.UUID
	Data      *resources.MeshData
	Transform *math.Transform

	renderer *renderer.Renderer
	vertices *metadata.RenderBuffer
	indices  *metadata.RenderBuffer
	ranges   []drawRange
}

// NewStaticMesh uploads data once. Every material range of data must name an
// entry of materials.
func NewStaticMesh(r *renderer.Renderer, data *resources.MeshData, materials map[string]*Material) (*StaticMesh, error) {
	if err := data.Validate(animation.MaxBones); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAsset, err)
	}
	if len(data.Materials) == 0 {
		return nil, fmt.Errorf("%w: mesh %q has no material ranges", core.ErrInvalidAsset, data.Name)
	}

	m := &StaticMesh{
		ID:        uuid.New(),
		Data:      data,
		Transform: math.TransformCreate(),
		renderer:  r,
	}
	for _, mm := range data.Materials {
		mat, ok := materials[mm.Material]
		if !ok {
			return nil, fmt.Errorf("%w: mesh %q uses unknown material %q", core.ErrInvalidAsset, data.Name, mm.Material)
		}
		m.ranges = append(m.ranges, drawRange{firstIndex: mm.FirstIndex, indexCount: mm.IndexCount, material: mat})
	}

	var err error
	if m.vertices, err = upload(r, metadata.RENDERBUFFER_TYPE_VERTEX, data.Name+"-vertices", resources.SliceBytes(data.Vertices)); err != nil {
		return nil, err
	}
	if m.indices, err = upload(r, metadata.RENDERBUFFER_TYPE_INDEX, data.Name+"-indices", resources.SliceBytes(data.Indices)); err != nil {
		r.Device().DestroyBuffer(m.vertices)
		return nil, err
	}
	core.LogDebug("mesh %s uploaded: %d vertices, %d indices, %d ranges", data.Name, len(data.Vertices), len(data.Indices), len(m.ranges))
	return m, nil
}

func upload(r *renderer.Renderer, kind metadata.RenderBufferType, label string, data []byte) (*metadata.RenderBuffer, error) {
	buf, err := r.Device().CreateBuffer(kind, uint64(len(data)), label)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer %s: %w", kind, label, err)
	}
	if err := r.Device().WriteBuffer(buf, 0, data); err != nil {
		r.Device().DestroyBuffer(buf)
		return nil, fmt.Errorf("failed to upload %s: %w", label, err)
	}
	return buf, nil
}

// Render draws the mesh with its own transform as the single instance matrix.
func (m *StaticMesh) Render(camera *components.Camera) error {
	if err := m.renderer.BindCamera(camera); err != nil {
		return err
	}
	if _, err := m.renderer.UploadMatrices([]math.Mat4{m.Transform.GetWorld()}); err != nil {
		return err
	}
	if err := m.renderer.Device().BindVertexBuffer(0, m.vertices, 0); err != nil {
		return err
	}
	return m.drawRanges()
}

func (m *StaticMesh) drawRanges() error {
	device := m.renderer.Device()
	if err := device.BindIndexBuffer(m.indices, 0); err != nil {
		return err
	}
	for _, dr := range m.ranges {
		if err := dr.material.Bind(); err != nil {
			return err
		}
		if err := device.DrawIndexed(dr.indexCount, dr.firstIndex, 1); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases the device buffers. Materials are owned by the caller.
func (m *StaticMesh) Destroy() {
	m.renderer.Device().DestroyBuffer(m.vertices)
	m.renderer.Device().DestroyBuffer(m.indices)
}

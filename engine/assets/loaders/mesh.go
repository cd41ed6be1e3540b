package loaders

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/animation"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
	"github.com/spaghettifunk/marionette/engine/resources"
)

type meshFile struct {
	Name     string   `toml:"name"`
	Indices  []uint32 `toml:"indices"`
	Vertices []struct {
		Position []float32 `toml:"position"`
		Normal   []float32 `toml:"normal"`
		UV       []float32 `toml:"uv"`
		Tangent  []float32 `toml:"tangent"`
	} `toml:"vertices"`
	Skin []struct {
		Weights []float32 `toml:"weights"`
		Joints  []int     `toml:"joints"`
	} `toml:"skin"`
	Materials []struct {
		FirstIndex uint32 `toml:"first_index"`
		IndexCount uint32 `toml:"index_count"`
		Material   string `toml:"material"`
	} `toml:"materials"`
}

// MeshLoader reads *.mesh.toml geometry. Bitangents are derived from the
// normal and tangent.
type MeshLoader struct{}

func (ml *MeshLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	var mf meshFile
	if err := decodeFile(path, &mf); err != nil {
		return nil, err
	}
	if mf.Name == "" {
		mf.Name = AssetName(path)
	}

	md := &resources.MeshData{
		Name:     mf.Name,
		Vertices: make([]resources.MeshVertex, len(mf.Vertices)),
		Indices:  mf.Indices,
	}
	for i, v := range mf.Vertices {
		var err error
		mv := &md.Vertices[i]
		if mv.Position, err = vec3FromSlice(v.Position); err != nil {
			return nil, fmt.Errorf("%w: %s: vertex %d position: %v", core.ErrInvalidAsset, path, i, err)
		}
		mv.Normal = math.NewVec3(0, 0, 1)
		if v.Normal != nil {
			if mv.Normal, err = vec3FromSlice(v.Normal); err != nil {
				return nil, fmt.Errorf("%w: %s: vertex %d normal: %v", core.ErrInvalidAsset, path, i, err)
			}
		}
		mv.Tangent = math.NewVec3Right()
		if v.Tangent != nil {
			if mv.Tangent, err = vec3FromSlice(v.Tangent); err != nil {
				return nil, fmt.Errorf("%w: %s: vertex %d tangent: %v", core.ErrInvalidAsset, path, i, err)
			}
		}
		mv.Bitangent = mv.Normal.Cross(mv.Tangent).Normalize()
		switch len(v.UV) {
		case 0:
		case 2:
			mv.TexCoord = math.NewVec2(v.UV[0], v.UV[1])
		default:
			return nil, fmt.Errorf("%w: %s: vertex %d uv has %d values, want 2", core.ErrInvalidAsset, path, i, len(v.UV))
		}
	}

	if len(mf.Skin) > 0 {
		md.Skin = make([]resources.SkinningVertex, len(mf.Skin))
		for i, s := range mf.Skin {
			if len(s.Weights) > 4 || len(s.Joints) != len(s.Weights) {
				return nil, fmt.Errorf("%w: %s: skin %d has %d weights and %d joints, want up to 4 of each",
					core.ErrInvalidAsset, path, i, len(s.Weights), len(s.Joints))
			}
			copy(md.Skin[i].Weights[:], s.Weights)
			for k, j := range s.Joints {
				if j < 0 || j >= animation.MaxBones {
					return nil, fmt.Errorf("%w: %s: skin %d joint %d is out of range", core.ErrInvalidAsset, path, i, j)
				}
				md.Skin[i].Indices[k] = uint8(j)
			}
		}
	}

	for _, m := range mf.Materials {
		md.Materials = append(md.Materials, resources.MeshMaterial{FirstIndex: m.FirstIndex, IndexCount: m.IndexCount, Material: m.Material})
	}

	// Bone indices are checked against the skeleton once the mesh is bound to one.
	if err := md.Validate(animation.MaxBones); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidAsset, path, err)
	}
	return &resources.Resource{
		Name:     md.Name,
		FullPath: path,
		Type:     resources.ResourceTypeMesh,
		DataSize: uint64(len(resources.SliceBytes(md.Vertices)) + len(resources.SliceBytes(md.Indices)) + len(resources.SliceBytes(md.Skin))),
		Data:     md,
	}, nil
}

func (ml *MeshLoader) Unload(*resources.Resource) error {
	return nil
}

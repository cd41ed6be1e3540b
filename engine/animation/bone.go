// Package animation evaluates keyframed skeletal animation into skinning matrices.
package animation

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/math"
)

// NoParent marks a root bone.
const NoParent = -1

// MaxBones is the most bones a skinning vertex can address with a byte index.
const MaxBones = 256

type Bone struct {
	Name   string
	Parent int
	// BindMatrix maps mesh space into the bone's space at rest (the offset matrix).
	BindMatrix math.Mat4
}

// Skeleton is a flat bone array where every parent precedes its children.
// It is immutable once built and can be shared by any number of meshes.
type Skeleton struct {
	Bones         []Bone
	GlobalInverse math.Mat4

	byName map[string]int
}

// NewSkeleton validates the bone table and builds the name index.
func NewSkeleton(bones []Bone, globalInverse math.Mat4) (*Skeleton, error) {
	if len(bones) == 0 {
		return nil, fmt.Errorf("%w: skeleton has no bones", core.ErrInvalidAsset)
	}
	if len(bones) > MaxBones {
		return nil, fmt.Errorf("%w: skeleton has %d bones, at most %d are addressable", core.ErrInvalidAsset, len(bones), MaxBones)
	}

	byName := make(map[string]int, len(bones))
	for i, b := range bones {
		if b.Parent != NoParent && (b.Parent < 0 || b.Parent >= i) {
			return nil, fmt.Errorf("%w: bone %q (index %d) has parent %d, parents must come before their children",
				core.ErrInvalidAsset, b.Name, i, b.Parent)
		}
		if _, dup := byName[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bone name %q", core.ErrInvalidAsset, b.Name)
		}
		byName[b.Name] = i
	}

	return &Skeleton{
		Bones:         bones,
		GlobalInverse: globalInverse,
		byName:        byName,
	}, nil
}

func (s *Skeleton) BoneCount() int {
	return len(s.Bones)
}

// BoneIndex looks a bone up by name.
func (s *Skeleton) BoneIndex(name string) (int, bool) {
	if s.byName == nil {
		for i, b := range s.Bones {
			if b.Name == name {
				return i, true
			}
		}
		return 0, false
	}
	i, ok := s.byName[name]
	return i, ok
}

package animation

import (
	"fmt"

	"github.com/spaghettifunk/marionette/engine/math"
)

// Evaluator turns a clip and a time into one skinning matrix per bone.
// It owns its pose buffers and reuses them across calls.
type Evaluator struct {
	skeleton *Skeleton
	world    []math.Mat4
	skinning []math.Mat4
}

func NewEvaluator(skeleton *Skeleton) *Evaluator {
	n := skeleton.BoneCount()
	return &Evaluator{
		skeleton: skeleton,
		world:    make([]math.Mat4, n),
		skinning: make([]math.Mat4, n),
	}
}

func (e *Evaluator) Skeleton() *Skeleton {
	return e.skeleton
}

// Evaluate computes the skinning matrices (world · bind) at elapsedSeconds.
// A nil clip yields the bind matrices unchanged. The returned slice is owned
// by the evaluator and overwritten by the next call.
func (e *Evaluator) Evaluate(clip *Clip, elapsedSeconds float32) []math.Mat4 {
	bones := e.skeleton.Bones

	if clip == nil {
		for i := range bones {
			e.world[i] = math.NewMat4Identity()
			e.skinning[i] = bones[i].BindMatrix
		}
		return e.skinning
	}

	ticks := clip.Ticks(elapsedSeconds)
	for i := range bones {
		local := clip.LocalTransform(i, ticks)
		parent := bones[i].Parent
		if parent == NoParent {
			e.world[i] = e.skeleton.GlobalInverse.Mul(local)
			continue
		}
		if parent < 0 || parent >= i {
			panic(fmt.Sprintf("animation: bone %q (index %d) references parent %d which is not evaluated yet",
				bones[i].Name, i, parent))
		}
		e.world[i] = e.world[parent].Mul(local)
	}

	for i := range bones {
		e.skinning[i] = e.world[i].Mul(bones[i].BindMatrix)
	}
	return e.skinning
}

// World returns the world transforms of the last evaluation. They are all
// identity after a rest pose evaluation.
func (e *Evaluator) World() []math.Mat4 {
	return e.world
}

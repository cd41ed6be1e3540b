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

// AnimatedMesh is one skinned instance of a static mesh. It keeps its own
// playback cursor and transform; geometry and clips are shared.
type AnimatedMesh struct {
	ID        uuid.UUID
	Transform *math.Transform

	static    *StaticMesh
	skeleton  *animation.Skeleton
	evaluator *animation.Evaluator
	cursor    animation.Cursor
	skin      *metadata.RenderBuffer

	// skinning matrices with the model matrix folded in
	palette []math.Mat4
}

// NewAnimatedMesh uploads the per-vertex bone influences once.
func NewAnimatedMesh(r *renderer.Renderer, static *StaticMesh, skel *animation.Skeleton, skin []resources.SkinningVertex) (*AnimatedMesh, error) {
	data := *static.Data
	data.Skin = skin
	if !data.IsSkinned() {
		return nil, fmt.Errorf("%w: mesh %q has no skinning data", core.ErrInvalidAsset, data.Name)
	}
	if err := data.Validate(skel.BoneCount()); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAsset, err)
	}
	for _, dr := range static.ranges {
		if !dr.material.Skinned() {
			return nil, fmt.Errorf("%w: mesh %q draws with material %q which has no skinning inputs", core.ErrInvalidAsset, data.Name, dr.material.Name)
		}
	}

	buf, err := upload(r, metadata.RENDERBUFFER_TYPE_VERTEX, data.Name+"-skin", resources.SliceBytes(skin))
	if err != nil {
		return nil, err
	}
	return &AnimatedMesh{
		ID:        uuid.New(),
		Transform: math.TransformCreate(),
		static:    static,
		skeleton:  skel,
		evaluator: animation.NewEvaluator(skel),
		skin:      buf,
		palette:   make([]math.Mat4, skel.BoneCount()),
	}, nil
}

func (m *AnimatedMesh) Static() *StaticMesh {
	return m.static
}

func (m *AnimatedMesh) Skeleton() *animation.Skeleton {
	return m.skeleton
}

// AddTime advances playback by seconds.
func (m *AnimatedMesh) AddTime(seconds float32) {
	m.cursor.Advance(seconds)
}

func (m *AnimatedMesh) AdvanceTime(seconds float32) {
	m.AddTime(seconds)
}

// SetAnimation starts clip from the beginning. Setting the clip that is
// already playing changes nothing. A nil clip shows the bind pose.
func (m *AnimatedMesh) SetAnimation(clip *animation.Clip) {
	if m.cursor.SetClip(clip) && clip != nil {
		core.LogDebug("mesh %s now playing %s", m.ID, clip.Name)
	}
}

// ReloadAnimation replaces the playing clip with a reloaded copy of the same
// name, keeping the playback position. Other clips are ignored.
func (m *AnimatedMesh) ReloadAnimation(clip *animation.Clip) bool {
	current := m.cursor.Clip()
	if current == nil || clip == nil || current.Name != clip.Name {
		return false
	}
	m.cursor.Replace(clip)
	return true
}

func (m *AnimatedMesh) Animation() *animation.Clip {
	return m.cursor.Clip()
}

// AnimationDuration is the active clip's loop length in seconds.
func (m *AnimatedMesh) AnimationDuration() float32 {
	return m.cursor.Clip().Seconds()
}

func (m *AnimatedMesh) Elapsed() float32 {
	return m.cursor.Elapsed()
}

// Pose evaluates the current skinning matrices without rendering.
func (m *AnimatedMesh) Pose() []math.Mat4 {
	return m.evaluator.Evaluate(m.cursor.Clip(), m.cursor.Elapsed())
}

// Render evaluates the pose and draws the mesh. The bone palette goes to
// exactly one transient region per draw. The camera uniforms take one more
// region per camera per frame, not per draw: the first mesh drawn with a
// camera claims it and later draws in the frame rebind it.
func (m *AnimatedMesh) Render(camera *components.Camera) error {
	r := m.static.renderer
	if err := r.BindCamera(camera); err != nil {
		return err
	}

	model := m.Transform.GetWorld()
	for i, s := range m.Pose() {
		m.palette[i] = model.Mul(s)
	}
	if _, err := r.UploadMatrices(m.palette); err != nil {
		return err
	}

	device := r.Device()
	if err := device.BindVertexBuffer(0, m.static.vertices, 0); err != nil {
		return err
	}
	if err := device.BindVertexBuffer(1, m.skin, 0); err != nil {
		return err
	}
	return m.static.drawRanges()
}

// Destroy releases the skinning buffer. The static mesh is left alone.
func (m *AnimatedMesh) Destroy() {
	m.static.renderer.Device().DestroyBuffer(m.skin)
}

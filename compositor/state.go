package compositor

import (
	"image"

	"github.com/Zubnix/trinity/region"
)

// Transform is a buffer transform: one of four rotations, optionally
// preceded by a horizontal flip.
type Transform int32

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

func (t Transform) Valid() bool {
	return (t >= TransformNormal) && (t <= TransformFlipped270)
}

// SwapsAxes reports whether the transform turns the buffer on its
// side.
func (t Transform) SwapsAxes() bool {
	return t&1 == 1
}

// SurfaceState is a snapshot of everything a client can change about
// a surface between commits. A committed SurfaceState is never
// modified; the regions it points to belong to it alone.
type SurfaceState struct {
	Buffer *Buffer

	// Offset is the position change requested by the attach that
	// produced this state.
	Offset image.Point

	// Damage is in surface-local coordinates, BufferDamage in buffer
	// coordinates.
	Damage       *region.Region
	BufferDamage *region.Region

	Opaque *region.Region

	// Input is nil if the whole surface accepts input.
	Input *region.Region

	Transform Transform
	Scale     int32
}

func initialState() SurfaceState {
	return SurfaceState{
		Damage:       new(region.Region),
		BufferDamage: new(region.Region),
		Opaque:       new(region.Region),
		Scale:        1,
	}
}

// Size is the size of the surface in surface-local coordinates, as
// determined by the buffer, its scale and its transform.
func (st SurfaceState) Size() image.Point {
	if st.Buffer == nil {
		return image.Point{}
	}

	size := st.Buffer.Size()
	if st.Transform.SwapsAxes() {
		size.X, size.Y = size.Y, size.X
	}
	return size.Div(int(max(st.Scale, 1)))
}

// clone copies st so that the copy's regions can be mutated without
// affecting st.
func (st SurfaceState) clone() SurfaceState {
	st.Damage = st.Damage.Clone()
	st.BufferDamage = st.BufferDamage.Clone()
	st.Opaque = st.Opaque.Clone()
	st.Input = st.Input.Clone()
	return st
}

// merge folds the newer state n into st, as happens when a
// synchronized sub-surface commits while it already has cached state.
func (st SurfaceState) merge(n SurfaceState) SurfaceState {
	damage := st.Damage.Clone().Union(n.Damage)
	bufferDamage := st.BufferDamage.Clone().Union(n.BufferDamage)
	offset := st.Offset.Add(n.Offset)

	st = n.clone()
	st.Damage = damage
	st.BufferDamage = bufferDamage
	st.Offset = offset
	return st
}

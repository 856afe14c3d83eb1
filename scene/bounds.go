package scene

import "math"

type AABB struct {
	Min [3]float32
	Max [3]float32
}

func EmptyAABB() AABB {
	return AABB{
		Min: [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

func (b *AABB) Extend(p [3]float32) {
	for i, v := range p {
		if v < b.Min[i] {
			b.Min[i] = v
		}
		if v > b.Max[i] {
			b.Max[i] = v
		}
	}
}

func (b *AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0]
}

func (p *Primitive) UpdateBounds() {
	b := EmptyAABB()
	for _, v := range p.Positions {
		b.Extend(v)
	}
	p.Bounds = b
}

// UpdateBounds recomputes every primitive's bounding box.
func (g *Graph) UpdateBounds() {
	for _, m := range g.Meshes {
		for _, p := range m.Primitives {
			p.UpdateBounds()
		}
	}
}

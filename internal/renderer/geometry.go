package renderer

import "fmt"

// quadVertices covers the whole viewport: position (xyz) then texture
// coordinates (uv) per vertex.
var quadVertices = []float32{
	// positions    // texture coords
	1.0, 1.0, 0.0, 1.0, 1.0, // top right
	1.0, -1.0, 0.0, 1.0, 0.0, // bottom right
	-1.0, -1.0, 0.0, 0.0, 0.0, // bottom left
	-1.0, 1.0, 0.0, 0.0, 1.0, // top left
}

var quadIndices = []uint32{
	0, 1, 3, // first triangle
	1, 2, 3, // second triangle
}

// quadLayout gives the component count of each vertex attribute, in
// attribute location order.
var quadLayout = []int{3, 2}

// NewQuad uploads the full-viewport quad. The mesh is immutable afterwards.
func NewQuad(dev Device) (Mesh, error) {
	mesh, err := dev.CreateMesh(quadVertices, quadIndices, quadLayout)
	if err != nil {
		return Mesh{}, fmt.Errorf("create quad: %w", err)
	}
	return mesh, nil
}

// Package renderer provides OpenGL rendering functionality.
package renderer

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/engine/debug"
	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/engine/scene"
	"github.com/Faultbox/arcloud/internal/engine/shader"
	"github.com/Faultbox/arcloud/internal/logger"
	"github.com/Faultbox/arcloud/internal/tracking"
	"github.com/Faultbox/arcloud/pkg/math"
)

// ErrForeignMaterial is returned by Submit for materials this renderer did not create.
var ErrForeignMaterial = errors.New("renderer: material was not created by this renderer")

const (
	fieldOfView = 60 * gomath.Pi / 180
	nearPlane   = 0.01
	farPlane    = 100
)

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	VSync      bool
	ShowPlanes bool
	ShowBounds bool
}

// material is an opaque flat color.
type material struct {
	color pointcloud.Color
}

// drawRange is one sub-mesh draw call.
type drawRange struct {
	color      pointcloud.Color
	startIndex int32
	indexCount int32
}

// GPUMesh is a point cloud mesh uploaded to the GPU.
type GPUMesh struct {
	r        *Renderer
	vao      uint32
	vbo      uint32
	ebo      uint32
	ranges   []drawRange
	bounds   pointcloud.Bounds
	released bool
}

// Release returns the mesh's buffers to the renderer for reuse.
func (m *GPUMesh) Release() {
	if m.released {
		return
	}
	m.released = true
	m.ranges = m.ranges[:0]
	m.r.free = append(m.r.free, m)
}

// Bounds returns the bounding box of the uploaded mesh.
func (m *GPUMesh) Bounds() pointcloud.Bounds {
	return m.bounds
}

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config     Config
	projection math.Mat4

	meshProgram *shader.Program

	lineProgram *shader.Program
	planeVAO    uint32
	planeVBO    uint32
	planeVerts  []float32
	planeLoops  [][2]int32 // first vertex, count
	boundsVerts []float32

	all  []*GPUMesh
	free []*GPUMesh
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config: cfg,
	}

	// Initialize OpenGL
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	// Log OpenGL info
	version := gl.GoStr(gl.GetString(gl.VERSION))
	rendererName := gl.GoStr(gl.GetString(gl.RENDERER))
	logger.Info("OpenGL initialized",
		zap.String("version", version),
		zap.String("renderer", rendererName),
	)

	// Setup default OpenGL state
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.MULTISAMPLE)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0) // Dark blue-gray background

	var err error
	r.meshProgram, err = shader.Build("mesh", meshVertexShader, meshFragmentShader, "uViewProj", "uColor", "uLightDir")
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh shader: %w", err)
	}
	r.lineProgram, err = shader.Build("line", lineVertexShader, lineFragmentShader, "uViewProj", "uColor")
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create line shader: %w", err)
	}

	r.createPlaneBuffers()
	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer", zap.Int("meshes", len(r.all)))
	for _, m := range r.all {
		gl.DeleteVertexArrays(1, &m.vao)
		gl.DeleteBuffers(1, &m.vbo)
		gl.DeleteBuffers(1, &m.ebo)
	}
	r.all, r.free = nil, nil

	if r.planeVAO != 0 {
		gl.DeleteVertexArrays(1, &r.planeVAO)
	}
	if r.planeVBO != 0 {
		gl.DeleteBuffers(1, &r.planeVBO)
	}
	r.meshProgram.Delete()
	r.lineProgram.Delete()
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))

	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	r.projection = math.Perspective(fieldOfView, aspect, nearPlane, farPlane)

	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.BindVertexArray(0)
	gl.UseProgram(0)
}

// MakeOpaqueWithColor implements pointcloud.MaterialFactory.
// GL objects may only be touched on the render thread, so the material is a
// plain color resolved when drawing.
func (r *Renderer) MakeOpaqueWithColor(ctx context.Context, c pointcloud.Color) (pointcloud.Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &material{color: c}, nil
}

// Submit implements scene.MeshSubmitter. It must be called on the render thread.
func (r *Renderer) Submit(ctx context.Context, mesh *pointcloud.Mesh) (scene.Renderable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mesh == nil || len(mesh.Indices) == 0 {
		return nil, errors.New("renderer: empty mesh")
	}

	ranges := make([]drawRange, 0, len(mesh.Submeshes))
	for _, sm := range mesh.Submeshes {
		mat, ok := sm.Material.(*material)
		if !ok {
			return nil, fmt.Errorf("%w: submesh %q", ErrForeignMaterial, sm.Name)
		}
		ranges = append(ranges, drawRange{color: mat.color, startIndex: sm.StartIndex, indexCount: sm.IndexCount})
	}

	m := r.acquireMesh()
	m.ranges = append(m.ranges, ranges...)
	m.bounds = mesh.Bounds

	gl.BindVertexArray(m.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Vertices)*vertexSize, unsafe.Pointer(&mesh.Vertices[0]), gl.STREAM_DRAW)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, unsafe.Pointer(&mesh.Indices[0]), gl.STREAM_DRAW)

	gl.BindVertexArray(0)
	return m, nil
}

var vertexSize = int(unsafe.Sizeof(pointcloud.Vertex{}))

// acquireMesh reuses a released mesh or creates a new one.
func (r *Renderer) acquireMesh() *GPUMesh {
	if n := len(r.free); n > 0 {
		m := r.free[n-1]
		r.free = r.free[:n-1]
		m.released = false
		return m
	}

	m := &GPUMesh{r: r}
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)

	// Position (location = 0), Normal (location = 1), TexCoord (location = 2)
	stride := int32(vertexSize)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(12))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, stride, gl.PtrOffset(24))
	gl.EnableVertexAttribArray(2)

	gl.BindVertexArray(0)
	r.all = append(r.all, m)

	logger.Debug("gpu mesh created", zap.Uint32("vao", m.vao), zap.Int("total", len(r.all)))
	return m
}

// DrawMesh draws a renderable returned by Submit. Other renderables are ignored.
func (r *Renderer) DrawMesh(view math.Mat4, rend scene.Renderable) {
	m, ok := rend.(*GPUMesh)
	if !ok || m == nil || m.released {
		return
	}

	viewProj := r.projection.Mul(view)
	r.meshProgram.Use()
	r.meshProgram.SetMat4("uViewProj", viewProj.Ptr())
	r.meshProgram.SetVec3("uLightDir", 0.3, 1.0, 0.5)

	gl.BindVertexArray(m.vao)
	for _, dr := range m.ranges {
		r.meshProgram.SetVec3("uColor", dr.color.R, dr.color.G, dr.color.B)
		gl.DrawElements(gl.TRIANGLES, dr.indexCount, gl.UNSIGNED_INT, gl.PtrOffset(int(dr.startIndex)*4))
	}
	gl.BindVertexArray(0)
}

func (r *Renderer) createPlaneBuffers() {
	gl.GenVertexArrays(1, &r.planeVAO)
	gl.BindVertexArray(r.planeVAO)

	gl.GenBuffers(1, &r.planeVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.planeVBO)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

// DrawPlanes draws the boundary of each plane as a line loop.
func (r *Renderer) DrawPlanes(view math.Mat4, planes []tracking.Plane) {
	if !r.config.ShowPlanes || len(planes) == 0 {
		return
	}

	r.planeVerts = r.planeVerts[:0]
	r.planeLoops = r.planeLoops[:0]
	for _, p := range planes {
		n := len(p.Polygon) / 2
		if n < 2 {
			continue
		}
		first := int32(len(r.planeVerts) / 3)
		for i := 0; i < n; i++ {
			r.planeVerts = append(r.planeVerts,
				p.Center[0]+p.Polygon[2*i],
				p.Center[1],
				p.Center[2]+p.Polygon[2*i+1],
			)
		}
		r.planeLoops = append(r.planeLoops, [2]int32{first, int32(n)})
	}
	if len(r.planeLoops) == 0 {
		return
	}

	viewProj := r.projection.Mul(view)
	r.lineProgram.Use()
	r.lineProgram.SetMat4("uViewProj", viewProj.Ptr())
	r.lineProgram.SetVec3("uColor", 0.3, 0.8, 1.0)

	gl.BindVertexArray(r.planeVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.planeVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(r.planeVerts)*4, unsafe.Pointer(&r.planeVerts[0]), gl.STREAM_DRAW)
	for _, loop := range r.planeLoops {
		gl.DrawArrays(gl.LINE_LOOP, loop[0], loop[1])
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

// SetShowBounds toggles the bounding box drawn around the mesh.
func (r *Renderer) SetShowBounds(show bool) {
	r.config.ShowBounds = show
}

// ShowBounds reports whether mesh bounds are drawn.
func (r *Renderer) ShowBounds() bool {
	return r.config.ShowBounds
}

// DrawBounds draws the bounding box of a renderable returned by Submit.
func (r *Renderer) DrawBounds(view math.Mat4, rend scene.Renderable) {
	if !r.config.ShowBounds {
		return
	}
	m, ok := rend.(*GPUMesh)
	if !ok || m == nil || m.released {
		return
	}

	r.boundsVerts = debug.BBoxWireframe(r.boundsVerts[:0], m.bounds, 0.01)

	viewProj := r.projection.Mul(view)
	r.lineProgram.Use()
	r.lineProgram.SetMat4("uViewProj", viewProj.Ptr())
	r.lineProgram.SetVec3("uColor", 1.0, 0.85, 0.2)

	// Shares the plane buffers; both are re-uploaded every draw.
	gl.BindVertexArray(r.planeVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.planeVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(r.boundsVerts)*4, unsafe.Pointer(&r.boundsVerts[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, debug.BBoxWireframeVertexCount)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

// ReadPixels reads the current framebuffer as RGBA, bottom row first.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	if len(pixels) == 0 {
		return pixels, w, h
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels, w, h
}

const meshVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;

uniform mat4 uViewProj;

out vec3 vNormal;

void main() {
	gl_Position = uViewProj * vec4(aPos, 1.0);
	vNormal = aNormal;
}
`

const meshFragmentShader = `
#version 410 core

in vec3 vNormal;

uniform vec3 uColor;
uniform vec3 uLightDir;

out vec4 FragColor;

void main() {
	float diffuse = max(dot(normalize(vNormal), normalize(uLightDir)), 0.0);
	FragColor = vec4(uColor * (0.35 + 0.65 * diffuse), 1.0);
}
`

const lineVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;

uniform mat4 uViewProj;

void main() {
	gl_Position = uViewProj * vec4(aPos, 1.0);
}
`

const lineFragmentShader = `
#version 410 core

uniform vec3 uColor;

out vec4 FragColor;

void main() {
	FragColor = vec4(uColor, 1.0);
}
`

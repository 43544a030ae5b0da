// Package shader compiles the viewer's GLSL programs and resolves their uniforms.
package shader

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/logger"
)

// Program is a linked shader program with its uniform locations resolved up front.
type Program struct {
	Name     string
	ID       uint32
	uniforms map[string]int32
}

// Build compiles and links a program and looks up every named uniform.
// A uniform the linker optimized away is an error, so typos surface at startup
// instead of as silently ignored draws.
func Build(name, vertexSrc, fragmentSrc string, uniforms ...string) (*Program, error) {
	vert, err := compile(gl.VERTEX_SHADER, vertexSrc)
	if err != nil {
		return nil, fmt.Errorf("%s: vertex shader: %w", name, err)
	}
	defer gl.DeleteShader(vert)

	frag, err := compile(gl.FRAGMENT_SHADER, fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("%s: fragment shader: %w", name, err)
	}
	defer gl.DeleteShader(frag)

	id := gl.CreateProgram()
	gl.AttachShader(id, vert)
	gl.AttachShader(id, frag)
	gl.LinkProgram(id)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(id, gl.GetProgramiv, gl.GetProgramInfoLog)
		gl.DeleteProgram(id)
		return nil, fmt.Errorf("%s: link: %s", name, msg)
	}

	p := &Program{Name: name, ID: id, uniforms: make(map[string]int32, len(uniforms))}
	for _, u := range uniforms {
		loc := gl.GetUniformLocation(id, gl.Str(u+"\x00"))
		if loc < 0 {
			p.Delete()
			return nil, fmt.Errorf("%s: uniform %q not found", name, u)
		}
		p.uniforms[u] = loc
	}

	logger.Debug("shader program linked",
		zap.String("name", name),
		zap.Uint32("id", id),
		zap.Int("uniforms", len(uniforms)),
	)
	return p, nil
}

func compile(kind uint32, source string) (uint32, error) {
	sh := gl.CreateShader(kind)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(sh, 1, csource, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(sh, gl.GetShaderiv, gl.GetShaderInfoLog)
		gl.DeleteShader(sh)
		return 0, fmt.Errorf("compile: %s", msg)
	}
	return sh, nil
}

// infoLog reads a shader or program log with the matching GL getters.
func infoLog(obj uint32, getiv func(uint32, uint32, *int32), getLog func(uint32, int32, *int32, *uint8)) string {
	var n int32
	getiv(obj, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no info log"
	}
	buf := make([]byte, n)
	getLog(obj, n, nil, &buf[0])
	return gl.GoStr(&buf[0])
}

// Use binds the program.
func (p *Program) Use() {
	gl.UseProgram(p.ID)
}

// SetMat4 uploads a column-major 4x4 matrix.
func (p *Program) SetMat4(name string, m *float32) {
	gl.UniformMatrix4fv(p.uniforms[name], 1, false, m)
}

// SetVec3 uploads a vec3.
func (p *Program) SetVec3(name string, x, y, z float32) {
	gl.Uniform3f(p.uniforms[name], x, y, z)
}

// Delete frees the GL program. It is safe on a nil or deleted program.
func (p *Program) Delete() {
	if p == nil || p.ID == 0 {
		return
	}
	gl.DeleteProgram(p.ID)
	p.ID = 0
}

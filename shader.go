package dieseltri

import (
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

//go:generate glslangValidator -V -o shaders/vert.spv shaders/shader.vert
//go:generate glslangValidator -V -o shaders/frag.spv shaders/shader.frag

// shaderEntryPoint is the entry point of both shader stages.
const shaderEntryPoint = "main"

// LoadShaderCode reads a SPIR-V file and checks it looks like one.
func LoadShaderCode(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "read shader %s (compile the GLSL sources in shaders/ with go generate)", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read shader")
	}
	if _, err := sliceUint32(code); err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return code, nil
}

type vkShaders struct {
	device   vk.Device
	vertex   vk.ShaderModule
	fragment vk.ShaderModule
}

func (d *vkDevice) CreateShaders(vert, frag []byte) (Shaders, error) {
	s := &vkShaders{device: d.handle}
	var err error
	if s.vertex, err = loadShaderModule(d.handle, vert); err != nil {
		return nil, errors.Wrap(err, "vertex shader")
	}
	if s.fragment, err = loadShaderModule(d.handle, frag); err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "fragment shader")
	}
	return s, nil
}

func (s *vkShaders) stages() []vk.PipelineShaderStageCreateInfo {
	return []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: s.vertex,
			PName:  safeString(shaderEntryPoint),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: s.fragment,
			PName:  safeString(shaderEntryPoint),
		},
	}
}

func (s *vkShaders) Destroy() {
	if s.vertex != vk.NullShaderModule {
		vk.DestroyShaderModule(s.device, s.vertex, nil)
		s.vertex = vk.NullShaderModule
	}
	if s.fragment != vk.NullShaderModule {
		vk.DestroyShaderModule(s.device, s.fragment, nil)
		s.fragment = vk.NullShaderModule
	}
}

func loadShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error) {
	words, err := sliceUint32(code)
	if err != nil {
		return vk.NullShaderModule, err
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}, nil, &module)
	if err := NewError(ret); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

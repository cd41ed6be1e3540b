package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/engine/renderer/metadata"
	"github.com/spaghettifunk/marionette/engine/resources"
)

// VulkanPipeline is the InternalData of a metadata.Pipeline.
type VulkanPipeline struct {
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout
	// Number of descriptor sets in the layout.
	SetCount uint32
}

func attributeFormat(f resources.VertexAttributeFormat) (vk.Format, error) {
	switch f {
	case resources.VertexFormatFloat2:
		return vk.FormatR32g32Sfloat, nil
	case resources.VertexFormatFloat3:
		return vk.FormatR32g32b32Sfloat, nil
	case resources.VertexFormatFloat4:
		return vk.FormatR32g32b32a32Sfloat, nil
	case resources.VertexFormatUByte4:
		return vk.FormatR8g8b8a8Uint, nil
	}
	return vk.FormatUndefined, fmt.Errorf("unsupported vertex attribute format %d", int(f))
}

func cullMode(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

// vertexInput describes one binding per vertex buffer of the format.
func vertexInput(format *resources.VertexFormat) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	var bindings []vk.VertexInputBindingDescription
	var attributes []vk.VertexInputAttributeDescription
	for i := 0; i < format.BufferCount(); i++ {
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    format.Stride(uint32(i)),
			InputRate: vk.VertexInputRateVertex,
		})
	}
	for _, a := range format.Attributes {
		f, err := attributeFormat(a.Format)
		if err != nil {
			return nil, nil, err
		}
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.BufferIndex,
			Format:   f,
			Offset:   a.Offset,
		})
	}
	return bindings, attributes, nil
}

// NewGraphicsPipeline builds a pipeline for the main renderpass. Viewport
// and scissor are dynamic so pipelines survive a swapchain rebuild.
func NewGraphicsPipeline(context *VulkanContext, descriptors *VulkanDescriptors, config *metadata.PipelineConfig) (*VulkanPipeline, error) {
	if config.VertexFormat == nil {
		return nil, fmt.Errorf("pipeline %q has no vertex format", config.Name)
	}
	bindings, attributes, err := vertexInput(config.VertexFormat)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", config.Name, err)
	}

	vert, err := NewShaderStage(context, config.Name+".vert", config.VertexSPIRV, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	defer vert.Destroy(context)
	frag, err := NewShaderStage(context, config.Name+".frag", config.FragmentSPIRV, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, err
	}
	defer frag.Destroy(context)

	setLayouts, err := descriptors.SetLayouts(context, config.TextureCount)
	if err != nil {
		return nil, err
	}

	outPipeline := &VulkanPipeline{SetCount: uint32(len(setLayouts))}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullMode(config.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if config.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	err = context.locks.SafeCall(PipelineManagement, func() error {
		var layout vk.PipelineLayout
		if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("vkCreatePipelineLayout failed with %s", VulkanResultString(res, true))
		}
		outPipeline.PipelineLayout = layout

		pipelineInfo := vk.GraphicsPipelineCreateInfo{
			SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount: 2,
			PStages: []vk.PipelineShaderStageCreateInfo{
				vert.ShaderStageCreateInfo,
				frag.ShaderStageCreateInfo,
			},
			PVertexInputState:   &vertexInputInfo,
			PInputAssemblyState: &inputAssembly,
			PViewportState:      &viewportState,
			PRasterizationState: &rasterizer,
			PMultisampleState:   &multisampling,
			PDepthStencilState:  &depthStencil,
			PColorBlendState:    &colorBlending,
			PDynamicState:       &dynamicState,
			Layout:              layout,
			RenderPass:          context.MainRenderpass.Handle,
			Subpass:             0,
			BasePipelineHandle:  vk.NullPipeline,
			BasePipelineIndex:   -1,
		}
		pipelines := make([]vk.Pipeline, 1)
		if res := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, context.Allocator, pipelines); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("vkCreateGraphicsPipelines failed with %s", VulkanResultString(res, true))
		}
		outPipeline.Handle = pipelines[0]
		return nil
	})
	if err != nil {
		outPipeline.Destroy(context)
		return nil, fmt.Errorf("pipeline %q: %w", config.Name, err)
	}

	core.LogDebug("graphics pipeline %s created with %d vertex buffers and %d descriptor sets", config.Name, len(bindings), len(setLayouts))
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	_ = context.locks.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != vk.NullPipeline {
			vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
			pipeline.Handle = vk.NullPipeline
		}
		if pipeline.PipelineLayout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = vk.NullPipelineLayout
		}
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, vk.PipelineBindPointGraphics, pipeline.Handle)
}

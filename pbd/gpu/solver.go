// Package gpu runs the cloth solver as WGSL compute kernels on a WebGPU
// device.
package gpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/cloth/pbd/core"
	"github.com/gekko3d/cloth/pbd/fabric"
	"github.com/gekko3d/cloth/pbd/shaders"
	"github.com/gekko3d/cloth/pbd/xpbd"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrNoAdapter = errors.New("no compatible GPU adapter")
	ErrReadback  = errors.New("particle readback failed")
)

type Options struct {
	// ValidateShaders compiles every kernel with naga before creating the
	// pipelines so that WGSL errors surface with a readable message.
	ValidateShaders bool
	Label           string
}

func DefaultOptions() Options {
	return Options{ValidateShaders: true, Label: "Cloth"}
}

type kernel struct {
	pipeline *wgpu.ComputePipeline
	bind     *wgpu.BindGroup
}

type colorPass struct {
	rangeBuf *wgpu.Buffer
	bind     *wgpu.BindGroup
	groups   uint32
}

// ComputeSolver mirrors xpbd.Solver on the GPU. Particles stay resident in a
// storage buffer and are copied back once per frame.
type ComputeSolver struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	owned  bool

	particleCount int
	stretchCount  int
	rest          []byte
	stretchInit   []byte

	paramsBuf   *wgpu.Buffer
	particleBuf *wgpu.Buffer
	stretchBuf  *wgpu.Buffer
	bendingBuf  *wgpu.Buffer
	forcesBuf   *wgpu.Buffer
	stagingBuf  *wgpu.Buffer
	modules     []*wgpu.ShaderModule
	predict     kernel
	stretch     kernel
	bending     kernel
	forces      kernel
	stretchPass []colorPass
	bendingPass []colorPass

	uploaded    xpbd.Params
	uploadedN   int
	hasUploaded bool

	positions []mgl32.Vec3
	frame     int
	diverged  error
}

// NewDevice requests a high performance adapter and a device without a
// surface.
func NewDevice() (*wgpu.Device, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}
	defer adapter.Release()

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Cloth Device",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	return device, nil
}

// New creates its own device and uploads f.
func New(f *fabric.ClothFabric, opts Options) (*ComputeSolver, error) {
	device, err := NewDevice()
	if err != nil {
		return nil, err
	}
	s, err := NewWithDevice(device, f, opts)
	if err != nil {
		device.Release()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewWithDevice uploads f to an existing device. The device is not released
// by Close.
func NewWithDevice(device *wgpu.Device, f *fabric.ClothFabric, opts Options) (*ComputeSolver, error) {
	if opts.ValidateShaders {
		if err := shaders.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.Label == "" {
		opts.Label = "Cloth"
	}

	s := &ComputeSolver{
		device:        device,
		queue:         device.GetQueue(),
		particleCount: f.ParticleCount(),
		stretchCount:  len(f.Stretch),
		rest:          encodeParticles(f.Particles),
		stretchInit:   encodeStretch(f.Stretch),
		positions:     f.RestPositions(),
	}
	if err := s.init(f, opts.Label); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *ComputeSolver) init(f *fabric.ClothFabric, label string) error {
	var err error
	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst

	if s.paramsBuf, err = s.buffer(label+" Params", paramsSize, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, nil); err != nil {
		return err
	}
	if s.particleBuf, err = s.buffer(label+" Particles", uint64(len(s.rest)), storage|wgpu.BufferUsageCopySrc, s.rest); err != nil {
		return err
	}
	if s.stretchBuf, err = s.buffer(label+" Stretch", uint64(len(s.stretchInit)), storage, s.stretchInit); err != nil {
		return err
	}
	bending := encodeBending(f.Bending)
	if s.bendingBuf, err = s.buffer(label+" Bending", uint64(len(bending)), storage, bending); err != nil {
		return err
	}
	if s.forcesBuf, err = s.buffer(label+" Forces", xpbd.MaxForces*forceStride, storage, nil); err != nil {
		return err
	}
	if s.stagingBuf, err = s.buffer(label+" Staging", uint64(len(s.rest)), wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst, nil); err != nil {
		return err
	}

	if s.predict, err = s.kernel(shaders.Predict, s.stretchBuf); err != nil {
		return err
	}
	if s.stretch, err = s.kernel(shaders.Stretch, s.stretchBuf); err != nil {
		return err
	}
	if s.bending, err = s.kernel(shaders.Bending, s.bendingBuf); err != nil {
		return err
	}
	if s.forces, err = s.kernel(shaders.Forces, s.forcesBuf); err != nil {
		return err
	}

	if s.stretchPass, err = s.colorPasses(label+" Stretch", s.stretch.pipeline, f.StretchGroups); err != nil {
		return err
	}
	if s.bendingPass, err = s.colorPasses(label+" Bending", s.bending.pipeline, f.BendingGroups); err != nil {
		return err
	}
	return nil
}

func (s *ComputeSolver) buffer(label string, size uint64, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error) {
	buf, err := s.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer: %w", label, err)
	}
	if data != nil {
		s.queue.WriteBuffer(buf, 0, data)
	}
	return buf, nil
}

// kernel builds the pipeline of k and its group 0 bind group. Every kernel
// binds params, particles and one kernel specific buffer.
func (s *ComputeSolver) kernel(k shaders.Kernel, third *wgpu.Buffer) (kernel, error) {
	module, err := s.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          k.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: k.Source},
	})
	if err != nil {
		return kernel{}, fmt.Errorf("failed to create %s module: %w", k.Name, err)
	}
	s.modules = append(s.modules, module)

	pipeline, err := s.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: k.Name + " Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: k.EntryPoint,
		},
	})
	if err != nil {
		return kernel{}, fmt.Errorf("failed to create %s pipeline: %w", k.Name, err)
	}

	bind, err := s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  k.Name + " BG",
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: s.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: s.particleBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: third, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		pipeline.Release()
		return kernel{}, fmt.Errorf("failed to create %s bind group: %w", k.Name, err)
	}
	return kernel{pipeline: pipeline, bind: bind}, nil
}

// colorPasses creates one range uniform and group 1 bind group per color.
func (s *ComputeSolver) colorPasses(label string, pipeline *wgpu.ComputePipeline, groups []core.ColorGroup) ([]colorPass, error) {
	passes := make([]colorPass, 0, len(groups))
	for i, g := range groups {
		name := fmt.Sprintf("%s Color %d", label, i)
		buf, err := s.buffer(name, rangeSize, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, encodeRange(g))
		if err != nil {
			return passes, err
		}
		bind, err := s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  name + " BG",
			Layout: pipeline.GetBindGroupLayout(1),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: buf, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			buf.Release()
			return passes, fmt.Errorf("failed to create %s bind group: %w", name, err)
		}
		passes = append(passes, colorPass{rangeBuf: buf, bind: bind, groups: g.DispatchShape()})
	}
	return passes, nil
}

// upload writes the params uniform and the force list. The uniform is only
// rewritten when a value changed.
func (s *ComputeSolver) upload(p xpbd.Params) {
	forceData, n := encodeForces(p.Forces)
	if !s.hasUploaded || n != s.uploadedN || p.Differs(s.uploaded, xpbd.ParamEpsilon) {
		s.queue.WriteBuffer(s.paramsBuf, 0, encodeParams(p, s.particleCount, s.stretchCount, n))
		s.uploaded = p
		s.uploadedN = n
		s.hasUploaded = true
	}
	if n > 0 {
		s.queue.WriteBuffer(s.forcesBuf, 0, forceData[:n*forceStride])
	}
}

// Step advances one frame: Substeps rounds of predict, stretch colors and
// bending colors, then the external forces, all in a single compute pass.
func (s *ComputeSolver) Step(p xpbd.Params) error {
	if s.diverged != nil {
		return s.diverged
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.upload(p)

	encoder, err := s.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	predictGroups := workgroups(max(s.particleCount, s.stretchCount))
	for sub := 0; sub < p.Substeps; sub++ {
		pass.SetPipeline(s.predict.pipeline)
		pass.SetBindGroup(0, s.predict.bind, nil)
		pass.DispatchWorkgroups(predictGroups, 1, 1)

		pass.SetPipeline(s.stretch.pipeline)
		pass.SetBindGroup(0, s.stretch.bind, nil)
		for _, cp := range s.stretchPass {
			pass.SetBindGroup(1, cp.bind, nil)
			pass.DispatchWorkgroups(cp.groups, 1, 1)
		}

		pass.SetPipeline(s.bending.pipeline)
		pass.SetBindGroup(0, s.bending.bind, nil)
		for _, cp := range s.bendingPass {
			pass.SetBindGroup(1, cp.bind, nil)
			pass.DispatchWorkgroups(cp.groups, 1, 1)
		}
	}
	if s.uploadedN > 0 {
		pass.SetPipeline(s.forces.pipeline)
		pass.SetBindGroup(0, s.forces.bind, nil)
		pass.DispatchWorkgroups(workgroups(s.particleCount), 1, 1)
	}
	pass.End()
	pass.Release()

	size := uint64(len(s.rest))
	encoder.CopyBufferToBuffer(s.particleBuf, 0, s.stagingBuf, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish encoder: %w", err)
	}
	s.queue.Submit(cmd)
	cmd.Release()

	positions, err := s.readback(size)
	if err != nil {
		return err
	}
	s.positions = positions
	s.frame++

	for i, pos := range positions {
		if !finite(pos) {
			s.diverged = fmt.Errorf("%w: particle %d at frame %d", xpbd.ErrDiverged, i, s.frame)
			return s.diverged
		}
	}
	return nil
}

func (s *ComputeSolver) readback(size uint64) ([]mgl32.Vec3, error) {
	var status wgpu.BufferMapAsyncStatus
	mapped := false
	s.stagingBuf.MapAsync(wgpu.MapModeRead, 0, size, func(st wgpu.BufferMapAsyncStatus) {
		status = st
		mapped = true
	})
	s.device.Poll(true, nil)
	if !mapped || status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("%w: map status %v", ErrReadback, status)
	}
	data := s.stagingBuf.GetMappedRange(0, uint(size))
	positions := decodePositions(data, s.particleCount)
	s.stagingBuf.Unmap()
	return positions, nil
}

// Reset uploads the rest pose and clears accumulated lambdas.
func (s *ComputeSolver) Reset() error {
	s.queue.WriteBuffer(s.particleBuf, 0, s.rest)
	s.queue.WriteBuffer(s.stretchBuf, 0, s.stretchInit)
	s.positions = decodePositions(s.rest, s.particleCount)
	s.frame = 0
	s.diverged = nil
	return nil
}

// Positions returns the positions read back after the last step.
func (s *ComputeSolver) Positions() []mgl32.Vec3 {
	return s.positions
}

func (s *ComputeSolver) Frame() int {
	return s.frame
}

func (s *ComputeSolver) Close() {
	for _, passes := range [][]colorPass{s.stretchPass, s.bendingPass} {
		for _, cp := range passes {
			cp.bind.Release()
			cp.rangeBuf.Release()
		}
	}
	s.stretchPass, s.bendingPass = nil, nil

	for _, k := range []*kernel{&s.predict, &s.stretch, &s.bending, &s.forces} {
		if k.bind != nil {
			k.bind.Release()
		}
		if k.pipeline != nil {
			k.pipeline.Release()
		}
		*k = kernel{}
	}
	for _, m := range s.modules {
		m.Release()
	}
	s.modules = nil

	for _, b := range []**wgpu.Buffer{&s.paramsBuf, &s.particleBuf, &s.stretchBuf, &s.bendingBuf, &s.forcesBuf, &s.stagingBuf} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	if s.queue != nil {
		s.queue.Release()
		s.queue = nil
	}
	if s.owned && s.device != nil {
		s.device.Release()
	}
	s.device = nil
}

func finite(v mgl32.Vec3) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Package shaders embeds the WGSL compute kernels of the GPU solver.
package shaders

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed common.wgsl
var commonWGSL string

//go:embed predict.wgsl
var predictWGSL string

//go:embed stretch.wgsl
var stretchWGSL string

//go:embed bending.wgsl
var bendingWGSL string

//go:embed forces.wgsl
var forcesWGSL string

// Kernel is one compute entry point with its complete source.
type Kernel struct {
	Name       string
	EntryPoint string
	Source     string
}

var (
	Predict = Kernel{Name: "ClothPredict", EntryPoint: "main", Source: commonWGSL + predictWGSL}
	Stretch = Kernel{Name: "ClothStretch", EntryPoint: "main", Source: commonWGSL + stretchWGSL}
	Bending = Kernel{Name: "ClothBending", EntryPoint: "main", Source: commonWGSL + bendingWGSL}
	Forces  = Kernel{Name: "ClothForces", EntryPoint: "main", Source: commonWGSL + forcesWGSL}
)

func All() []Kernel {
	return []Kernel{Predict, Stretch, Bending, Forces}
}

// Compile translates the kernel to SPIR-V with naga.
func (k Kernel) Compile() ([]byte, error) {
	spirv, err := naga.Compile(k.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", k.Name, err)
	}
	return spirv, nil
}

// Validate compiles every kernel and returns the first failure.
func Validate() error {
	for _, k := range All() {
		if _, err := k.Compile(); err != nil {
			return err
		}
	}
	return nil
}

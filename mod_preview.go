package cloth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gekko3d/cloth/pbd/preview"
)

// PreviewModule writes a PNG of the exported cloth every Every frames into
// Dir. Install it after ClothModule.
type PreviewModule struct {
	Dir     string
	Every   int
	Options preview.Options
}

type PreviewState struct {
	Dir       string
	Every     int
	Written   []string
	renderer  *preview.Renderer
	lastFrame int
	log       Logger
}

func (mod PreviewModule) Install(app *App, cmd *Commands) {
	opts := mod.Options
	if opts.Width == 0 {
		opts = preview.DefaultOptions()
	}
	every := max(mod.Every, 1)
	if err := os.MkdirAll(mod.Dir, 0o755); err != nil {
		app.Logger().Errorf("preview directory %s: %v", mod.Dir, err)
	}
	cmd.AddResources(&PreviewState{
		Dir:       mod.Dir,
		Every:     every,
		renderer:  preview.NewRenderer(opts),
		lastFrame: -1,
		log:       app.Logger(),
	})
	cmd.UseSystem(System(previewSystem).InStage(Render))
}

func previewSystem(pv *PreviewState, snapshots *ClothSnapshotContainer, prof *Profiler) {
	snap := snapshots.Get()
	if snap == nil || snap.Frame == pv.lastFrame || snap.Frame%pv.Every != 0 {
		return
	}
	pv.lastFrame = snap.Frame

	prof.BeginScope("Cloth Preview")
	defer prof.EndScope("Cloth Preview")

	path := filepath.Join(pv.Dir, fmt.Sprintf("cloth_%05d.png", snap.Frame))
	if err := pv.renderer.WritePNG(path, snap); err != nil {
		pv.log.Warnf("preview frame %d: %v", snap.Frame, err)
		return
	}
	pv.Written = append(pv.Written, path)
}

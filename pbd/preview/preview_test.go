package preview

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/cloth/pbd/controller"
	"github.com/gekko3d/cloth/pbd/fabric"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restSnapshot(t *testing.T) *controller.Snapshot {
	t.Helper()
	req := fabric.DefaultRequest()
	req.HorizontalNum = 8
	req.VerticalNum = 8
	f, err := fabric.Build(context.Background(), req)
	require.NoError(t, err)

	var pinned []int32
	for i := range f.Particles {
		if f.Particles[i].Pinned() {
			pinned = append(pinned, int32(i))
		}
	}
	return &controller.Snapshot{
		FabricID:      f.ID,
		HorizontalNum: f.HorizontalNum,
		VerticalNum:   f.VerticalNum,
		Positions:     f.RestPositions(),
		Indices:       f.Mesh.Indices,
		Pinned:        pinned,
		View:          controller.ViewFor(f),
	}
}

func TestRender_FlatCloth(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 128, 128
	opts.EdgeWidth = 0
	opts.PinSize = 0
	snap := restSnapshot(t)

	img, err := NewRenderer(opts).Render(snap)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	// The view leaves a margin around the cloth.
	assert.Equal(t, opts.Background, img.RGBAAt(1, 1))
	assert.Equal(t, opts.Background, img.RGBAAt(126, 126))

	// A flat cloth faces the viewer straight on and is fully lit.
	viewport := mgl32.Vec2{128, 128}
	idx := snap.Indices[:3]
	var centroid mgl32.Vec2
	for _, i := range idx {
		centroid = centroid.Add(snap.View.SimToScreen(snap.Positions[i], viewport).Mul(1.0 / 3))
	}
	got := img.RGBAAt(int(centroid.X()), int(centroid.Y()))
	if got != opts.Front && got != opts.Back {
		t.Errorf("triangle pixel %v, want front %v or back %v", got, opts.Front, opts.Back)
	}
}

func TestRender_PinsOnTop(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 128, 128
	snap := restSnapshot(t)
	require.NotEmpty(t, snap.Pinned)

	img, err := NewRenderer(opts).Render(snap)
	require.NoError(t, err)

	viewport := mgl32.Vec2{128, 128}
	for _, i := range snap.Pinned {
		p := snap.View.SimToScreen(snap.Positions[i], viewport)
		assert.Equal(t, opts.Pin, img.RGBAAt(int(p.X()), int(p.Y())), "pin %d", i)
	}
}

func TestRender_Empty(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	_, err := r.Render(nil)
	assert.ErrorIs(t, err, ErrEmptySnapshot)
	_, err = r.Render(&controller.Snapshot{})
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestWritePNG(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 48
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, NewRenderer(opts).WritePNG(path, restSnapshot(t)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)
}

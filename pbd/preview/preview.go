// Package preview rasterizes cloth snapshots into images for offline
// inspection.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"sort"

	"github.com/gekko3d/cloth/pbd/controller"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/vector"
)

var ErrEmptySnapshot = errors.New("snapshot has no geometry")

type Options struct {
	Width      int
	Height     int
	Background color.RGBA
	Front      color.RGBA
	Back       color.RGBA
	Edge       color.RGBA
	Pin        color.RGBA
	// EdgeWidth in pixels. Zero disables the wireframe.
	EdgeWidth float32
	PinSize   float32
}

func DefaultOptions() Options {
	return Options{
		Width:      512,
		Height:     512,
		Background: color.RGBA{R: 24, G: 26, B: 32, A: 255},
		Front:      color.RGBA{R: 214, G: 92, B: 74, A: 255},
		Back:       color.RGBA{R: 120, G: 140, B: 190, A: 255},
		Edge:       color.RGBA{R: 20, G: 20, B: 20, A: 160},
		Pin:        color.RGBA{R: 250, G: 220, B: 60, A: 255},
		EdgeWidth:  1,
		PinSize:    6,
	}
}

type triangle struct {
	a, b, c mgl32.Vec2
	depth   float32
	shade   color.RGBA
}

// Renderer reuses one rasterizer across draws.
type Renderer struct {
	opts Options
	z    *vector.Rasterizer
}

func NewRenderer(opts Options) *Renderer {
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	return &Renderer{opts: opts, z: vector.NewRasterizer(1, 1)}
}

// Render draws the mesh back to front with flat shading, then the wireframe
// and the pinned particles.
func (r *Renderer) Render(snap *controller.Snapshot) (*image.RGBA, error) {
	if snap == nil || len(snap.Positions) == 0 || len(snap.Indices) < 3 {
		return nil, ErrEmptySnapshot
	}
	o := r.opts
	img := image.NewRGBA(image.Rect(0, 0, o.Width, o.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(o.Background), image.Point{}, draw.Src)

	viewport := mgl32.Vec2{float32(o.Width), float32(o.Height)}
	screen := make([]mgl32.Vec2, len(snap.Positions))
	for i, p := range snap.Positions {
		screen[i] = snap.View.SimToScreen(p, viewport)
	}

	tris := make([]triangle, 0, len(snap.Indices)/3)
	for i := 0; i+2 < len(snap.Indices); i += 3 {
		ia, ib, ic := snap.Indices[i], snap.Indices[i+1], snap.Indices[i+2]
		pa, pb, pc := snap.Positions[ia], snap.Positions[ib], snap.Positions[ic]
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		l := n.Len()
		if l == 0 || !finite(l) {
			continue
		}
		nz := n.Z() / l
		base := o.Front
		if nz < 0 {
			base = o.Back
		}
		tris = append(tris, triangle{
			a:     screen[ia],
			b:     screen[ib],
			c:     screen[ic],
			depth: (pa.Z() + pb.Z() + pc.Z()) / 3,
			shade: scale(base, 0.35+0.65*float32(math.Abs(float64(nz)))),
		})
	}
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].depth < tris[j].depth })

	for _, t := range tris {
		r.fill(img, t.shade, t.a, t.b, t.c)
	}
	if o.EdgeWidth > 0 {
		for _, t := range tris {
			r.line(img, o.Edge, t.a, t.b, o.EdgeWidth)
			r.line(img, o.Edge, t.b, t.c, o.EdgeWidth)
			r.line(img, o.Edge, t.c, t.a, o.EdgeWidth)
		}
	}
	if o.PinSize > 0 {
		h := o.PinSize / 2
		for _, i := range snap.Pinned {
			p := screen[i]
			r.fill(img, o.Pin,
				mgl32.Vec2{p.X() - h, p.Y() - h},
				mgl32.Vec2{p.X() + h, p.Y() - h},
				mgl32.Vec2{p.X() + h, p.Y() + h},
				mgl32.Vec2{p.X() - h, p.Y() + h})
		}
	}
	return img, nil
}

// fill rasterizes a closed polygon. The rasterizer is sized to the polygon
// bounds so the cost follows the covered area.
func (r *Renderer) fill(dst *image.RGBA, c color.RGBA, pts ...mgl32.Vec2) {
	minX, minY := float32(math.Inf(1)), float32(math.Inf(1))
	maxX, maxY := float32(math.Inf(-1)), float32(math.Inf(-1))
	for _, p := range pts {
		if !finite(p.X()) || !finite(p.Y()) {
			return
		}
		minX, maxX = min(minX, p.X()), max(maxX, p.X())
		minY, maxY = min(minY, p.Y()), max(maxY, p.Y())
	}
	bounds := image.Rect(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX)))+1, int(math.Ceil(float64(maxY)))+1,
	).Intersect(dst.Bounds())
	if bounds.Empty() {
		return
	}

	ox, oy := float32(bounds.Min.X), float32(bounds.Min.Y)
	r.z.Reset(bounds.Dx(), bounds.Dy())
	r.z.DrawOp = draw.Over
	r.z.MoveTo(pts[0].X()-ox, pts[0].Y()-oy)
	for _, p := range pts[1:] {
		r.z.LineTo(p.X()-ox, p.Y()-oy)
	}
	r.z.ClosePath()
	r.z.Draw(dst, bounds, image.NewUniform(c), image.Point{})
}

func (r *Renderer) line(dst *image.RGBA, c color.RGBA, a, b mgl32.Vec2, width float32) {
	d := b.Sub(a)
	l := d.Len()
	if l == 0 {
		return
	}
	n := mgl32.Vec2{-d.Y(), d.X()}.Mul(width / (2 * l))
	r.fill(dst, c, a.Add(n), b.Add(n), b.Sub(n), a.Sub(n))
}

// WritePNG renders snap into a PNG file at path.
func (r *Renderer) WritePNG(path string, snap *controller.Snapshot) error {
	img, err := r.Render(snap)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return f.Close()
}

func scale(c color.RGBA, k float32) color.RGBA {
	k = mgl32.Clamp(k, 0, 1)
	return color.RGBA{
		R: uint8(float32(c.R)*k + 0.5),
		G: uint8(float32(c.G)*k + 0.5),
		B: uint8(float32(c.B)*k + 0.5),
		A: c.A,
	}
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

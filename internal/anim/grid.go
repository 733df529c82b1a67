// File: internal/anim/grid.go
// Brief: Flicker grid geometry and per-cell opacity.

// Package anim draws the decorative flicker shown while a scan is pending.
// A Task owns a grid of independently oscillating cells and repaints a Canvas
// on every frame tick until it is cancelled.
package anim

import (
	"math"
	"math/rand/v2"
)

// Colour is the RGB used for every cell (a pink-red).
var Colour = [3]uint8{233, 69, 96}

// Cell is one square of the grid.
type Cell struct {
	X, Y  int
	Size  int
	Base  float64 // base intensity in [0.3, 0.9)
	Phase float64 // radians in [0, 2π)
	Speed float64 // radians per millisecond in [0.01, 0.03)
}

// Opacity is the cell's alpha after elapsedMS milliseconds, clamped to [0, 1].
func (c Cell) Opacity(elapsedMS float64) float64 {
	a := c.Base + math.Sin(c.Phase+elapsedMS*c.Speed)*0.5
	return math.Max(0, math.Min(1, a))
}

// Grid is the full set of cells for one surface size.
type Grid struct {
	Width  int
	Height int
	Gap    int
	Cells  []Cell
}

// NewGrid lays a cell every gap units across a width×height surface.
func NewGrid(width, height, gap int, rng *rand.Rand) *Grid {
	if gap < 1 {
		gap = 1
	}
	g := &Grid{Width: width, Height: height, Gap: gap}
	if width <= 0 || height <= 0 {
		return g
	}
	size := int(math.Floor(float64(gap) * 0.8))
	if size < 1 {
		size = 1
	}
	cols := (width + gap - 1) / gap
	rows := (height + gap - 1) / gap
	g.Cells = make([]Cell, 0, cols*rows)
	for x := 0; x < width; x += gap {
		for y := 0; y < height; y += gap {
			g.Cells = append(g.Cells, Cell{
				X:     x,
				Y:     y,
				Size:  size,
				Base:  rng.Float64()*0.6 + 0.3,
				Phase: rng.Float64() * math.Pi * 2,
				Speed: rng.Float64()*0.02 + 0.01,
			})
		}
	}
	return g
}

// Frame is a fully computed repaint of the surface.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Gap    int
	Colour [3]uint8
	Cells  []FrameCell
}

// FrameCell is a cell with its computed opacity.
type FrameCell struct {
	X, Y  int
	Size  int
	Alpha float64
}

func (g *Grid) frame(seq uint64, elapsedMS float64) Frame {
	f := Frame{Seq: seq, Width: g.Width, Height: g.Height, Gap: g.Gap, Colour: Colour}
	f.Cells = make([]FrameCell, len(g.Cells))
	for i, c := range g.Cells {
		f.Cells[i] = FrameCell{X: c.X, Y: c.Y, Size: c.Size, Alpha: c.Opacity(elapsedMS)}
	}
	return f
}

// Alphas quantizes the frame's opacities to one byte per cell, in cell order.
func (f Frame) Alphas() []byte {
	out := make([]byte, len(f.Cells))
	for i, c := range f.Cells {
		out[i] = byte(math.Round(c.Alpha * 255))
	}
	return out
}

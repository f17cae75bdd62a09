// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package window

import (
	"strings"

	"github.com/bitmark-inc/jpipd/fault"
)

// Coords - a point or a size
type Coords struct {
	X int
	Y int
}

// Dims - a rectangle
type Dims struct {
	Pos  Coords
	Size Coords
}

// IsEmpty - true if the rectangle has no area
func (d Dims) IsEmpty() bool {
	return d.Size.X <= 0 || d.Size.Y <= 0
}

// Intersect - the overlap of two rectangles
func (d Dims) Intersect(other Dims) Dims {
	x0 := maxInt(d.Pos.X, other.Pos.X)
	y0 := maxInt(d.Pos.Y, other.Pos.Y)
	x1 := minInt(d.Pos.X+d.Size.X, other.Pos.X+other.Size.X)
	y1 := minInt(d.Pos.Y+d.Size.Y, other.Pos.Y+other.Size.Y)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Dims{
		Pos:  Coords{X: x0, Y: y0},
		Size: Coords{X: x1 - x0, Y: y1 - y0},
	}
}

// Area - number of samples in the rectangle
func (d Dims) Area() int64 {
	if d.IsEmpty() {
		return 0
	}
	return int64(d.Size.X) * int64(d.Size.Y)
}

// rounding of the requested frame size to an available resolution
const (
	RoundDown    = -1
	RoundClosest = 0
	RoundUp      = 1
)

// Window - a window of interest
//
// Resolution is the requested full frame size; a zero resolution
// requests no imagery.  A Region with no area covers the whole frame.
// MaxLayers 0 means all quality layers.  An empty Metareqs list asks
// for whatever metadata the server judges important.
type Window struct {
	Resolution     Coords
	RoundDirection int
	Region         Dims
	Components     RangeSet
	Codestreams    RangeSet
	Contexts       RangeSet
	MaxLayers      int
	MetadataOnly   bool
	Metareqs       []Metareq

	expansions []*RangeSet
}

// Init - reset to the empty window
func (w *Window) Init() {
	w.Resolution = Coords{}
	w.RoundDirection = RoundDown
	w.Region = Dims{}
	w.Components.Init()
	w.Codestreams.Init()
	w.Contexts.Init()
	w.MaxLayers = 0
	w.expansions = w.expansions[:0]
	w.InitMetareq()
}

// InitMetareq - drop all metadata requests
func (w *Window) InitMetareq() {
	w.Metareqs = w.Metareqs[:0]
	w.MetadataOnly = false
}

// IsEmpty - true if nothing at all is requested
func (w *Window) IsEmpty() bool {
	return !w.hasImagery() && 0 == len(w.Metareqs) && w.Codestreams.IsEmpty() && w.Contexts.IsEmpty()
}

func (w *Window) hasImagery() bool {
	return !w.MetadataOnly && w.Resolution.X > 0 && w.Resolution.Y > 0
}

// FrameRegion - the region with an empty region expanded to the frame
func (w *Window) FrameRegion() Dims {
	if w.Region.IsEmpty() {
		return Dims{Size: w.Resolution}
	}
	return w.Region
}

// CopyFrom - make w a copy of src
//
// context expansions are copied only if copyExpansions is set
func (w *Window) CopyFrom(src *Window, copyExpansions bool) {
	if w == src {
		return
	}
	w.Resolution = src.Resolution
	w.RoundDirection = src.RoundDirection
	w.Region = src.Region
	w.Components.CopyFrom(&src.Components)
	w.Codestreams.CopyFrom(&src.Codestreams)
	w.Contexts.CopyFrom(&src.Contexts)
	w.MaxLayers = src.MaxLayers
	w.expansions = w.expansions[:0]
	if copyExpansions {
		for i, r := range src.Contexts.ranges {
			if nil == r.Expansion {
				continue
			}
			e := w.CreateContextExpansion(i)
			e.CopyFrom(r.Expansion)
		}
	}
	w.CopyMetareqFrom(src)
}

// CopyMetareqFrom - replace the metadata requests by those of src
func (w *Window) CopyMetareqFrom(src *Window) {
	w.Metareqs = append(w.Metareqs[:0], src.Metareqs...)
	w.MetadataOnly = src.MetadataOnly
}

// CreateContextExpansion - attach an empty expansion to the which'th
// context range, returns nil if there is no such range
func (w *Window) CreateContextExpansion(which int) *RangeSet {
	if which < 0 || which >= len(w.Contexts.ranges) {
		return nil
	}
	e := w.Contexts.ranges[which].Expansion
	if nil == e {
		e = &RangeSet{}
		w.expansions = append(w.expansions, e)
		w.Contexts.ranges[which].Expansion = e
	}
	e.Init()
	return e
}

// ContextExpansion - the expansion of the which'th context range, or nil
func (w *Window) ContextExpansion(which int) *RangeSet {
	if which < 0 || which >= len(w.Contexts.ranges) {
		return nil
	}
	return w.Contexts.ranges[which].Expansion
}

// AddMetareq - append a metadata request
func (w *Window) AddMetareq(boxType uint32, qualifier int, priority bool, byteLimit int, recurse bool, rootBinID int64, maxDepth int) {
	if 0 == qualifier&MetareqAny {
		qualifier = MetareqDefault
	}
	w.Metareqs = append(w.Metareqs, Metareq{
		BoxType:   boxType,
		Qualifier: qualifier & MetareqAny,
		Priority:  priority,
		ByteLimit: byteLimit,
		Recurse:   recurse,
		RootBinID: rootBinID,
		MaxDepth:  maxDepth,
	})
}

// Metareq - the index'th metadata request
func (w *Window) Metareq(index int) (Metareq, bool) {
	if index < 0 || index >= len(w.Metareqs) {
		return Metareq{}, false
	}
	return w.Metareqs[index], true
}

// HaveMetareq - true if any request carries one of the qualifier flags
func (w *Window) HaveMetareq(qualifier int) bool {
	for _, m := range w.Metareqs {
		if 0 != m.Qualifier&qualifier {
			return true
		}
	}
	return false
}

// MetareqContains - every metadata request of rhs is also in w
//
// an empty list asks for everything important, so it is only
// contained by another empty list
func (w *Window) MetareqContains(rhs *Window) bool {
	if 0 == len(w.Metareqs) {
		return 0 == len(rhs.Metareqs)
	}
	if 0 == len(rhs.Metareqs) {
		return false
	}
next:
	for _, r := range rhs.Metareqs {
		for _, m := range w.Metareqs {
			if m.Equals(r) {
				continue next
			}
		}
		return false
	}
	return true
}

// ImageryContains - the imagery requested by rhs is requested by w
//
// metadata requests and context expansions are not compared
func (w *Window) ImageryContains(rhs *Window) bool {
	if !rhs.hasImagery() {
		return true
	}
	if !w.hasImagery() {
		return false
	}
	if w.Resolution.X < rhs.Resolution.X || w.Resolution.Y < rhs.Resolution.Y {
		return false
	}
	if w.RoundDirection != rhs.RoundDirection {
		return false
	}

	// compare regions exactly in the product of both frame sizes
	a := w.FrameRegion()
	b := rhs.FrameRegion()
	if !scaledInside(b.Pos.X, b.Size.X, rhs.Resolution.X, a.Pos.X, a.Size.X, w.Resolution.X) ||
		!scaledInside(b.Pos.Y, b.Size.Y, rhs.Resolution.Y, a.Pos.Y, a.Size.Y, w.Resolution.Y) {
		return false
	}

	if !w.Components.IsEmpty() {
		if rhs.Components.IsEmpty() || !w.Components.Contains(&rhs.Components, false) {
			return false
		}
	}
	if !w.Codestreams.Contains(&rhs.Codestreams, true) {
		return false
	}
	if !w.Contexts.Contains(&rhs.Contexts, false) {
		return false
	}
	return layerLimit(w.MaxLayers) >= layerLimit(rhs.MaxLayers)
}

// inner interval [pos, pos+size) at resolution res lies within the
// outer interval at resolution outerRes
func scaledInside(pos int, size int, res int, outerPos int, outerSize int, outerRes int) bool {
	start := int64(pos) * int64(outerRes)
	end := int64(pos+size) * int64(outerRes)
	return int64(outerPos)*int64(res) <= start && end <= int64(outerPos+outerSize)*int64(res)
}

func layerLimit(n int) int {
	if n <= 0 {
		return MaximumIndex
	}
	return n
}

// Contains - imagery and metadata requests of rhs are included in w
func (w *Window) Contains(rhs *Window) bool {
	return w.ImageryContains(rhs) && w.MetareqContains(rhs)
}

// ImageryEquals - both windows request the same imagery
func (w *Window) ImageryEquals(rhs *Window) bool {
	return w.ImageryContains(rhs) && rhs.ImageryContains(w)
}

// Equals - both windows request the same imagery and metadata
func (w *Window) Equals(rhs *Window) bool {
	return w.Contains(rhs) && rhs.Contains(w)
}

// ParseMetareq - append the requests of a JPIP "metareq" field
//
// a trailing "!!" sets MetadataOnly
func (w *Window) ParseMetareq(s string) error {
	parsed := []Metareq{}
	for 0 != len(s) {
		if "!!" == s {
			break
		}
		group, rest, err := parseMetareqGroup(s)
		if nil != err {
			return err
		}
		parsed = append(parsed, group...)
		s = rest
		if strings.HasPrefix(s, ",") {
			s = s[1:]
			if 0 == len(s) {
				return fault.InvalidMetareq
			}
		} else if 0 != len(s) && "!!" != s {
			return fault.InvalidMetareq
		}
	}
	w.Metareqs = append(w.Metareqs, parsed...)
	if "!!" == s {
		w.MetadataOnly = true
	}
	return nil
}

// MetareqString - the JPIP "metareq" field for the window
func (w *Window) MetareqString() string {
	groups := []string{}
	for i := 0; i < len(w.Metareqs); {
		first := w.Metareqs[i]
		props := []string{}
		j := i
		for ; j < len(w.Metareqs); j += 1 {
			m := w.Metareqs[j]
			if m.RootBinID != first.RootBinID || m.MaxDepth != first.MaxDepth {
				break
			}
			props = append(props, m.boxProperty())
		}
		g := "[" + strings.Join(props, ";") + "]"
		if 0 != first.RootBinID {
			g += "R" + itoa64(first.RootBinID)
		}
		if first.MaxDepth < UnlimitedDepth {
			g += "D" + itoa(first.MaxDepth)
		}
		groups = append(groups, g)
		i = j
	}
	s := strings.Join(groups, ",")
	if w.MetadataOnly {
		s += "!!"
	}
	return s
}

func minInt(a int, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a int, b int) int {
	if a > b {
		return a
	}
	return b
}

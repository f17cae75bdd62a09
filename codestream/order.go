// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codestream

import (
	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/target"
)

// one packet in codestream order
type packet struct {
	component  int
	resolution int
	index      int64
	layer      int
}

// packetOrder - the packets of a tile in progression order
//
// position driven orders are only supported when every
// tile-component resolution has at most one precinct, where they
// reduce to nestings of resolution, component and layer
func packetOrder(s *target.Structure, tile int) ([]packet, error) {
	maxResolution := 0
	for c := range s.Components {
		if s.Components[c].Levels > maxResolution {
			maxResolution = s.Components[c].Levels
		}
	}

	order := []packet{}
	precincts := func(c int, r int, l int) {
		if r > s.Components[c].Levels {
			return
		}
		n := s.NumPrecincts(tile, c, r)
		for p := int64(0); p < n; p += 1 {
			order = append(order, packet{
				component:  c,
				resolution: r,
				index:      p,
				layer:      l,
			})
		}
	}

	switch s.Progression {
	case target.LRCP:
		for l := 0; l < s.Layers; l += 1 {
			for r := 0; r <= maxResolution; r += 1 {
				for c := range s.Components {
					precincts(c, r, l)
				}
			}
		}

	case target.RLCP:
		for r := 0; r <= maxResolution; r += 1 {
			for l := 0; l < s.Layers; l += 1 {
				for c := range s.Components {
					precincts(c, r, l)
				}
			}
		}

	case target.RPCL:
		if !singlePrecincts(s, tile) {
			return nil, fault.InvalidCodestream
		}
		for r := 0; r <= maxResolution; r += 1 {
			for c := range s.Components {
				for l := 0; l < s.Layers; l += 1 {
					precincts(c, r, l)
				}
			}
		}

	case target.PCRL, target.CPRL:
		if !singlePrecincts(s, tile) {
			return nil, fault.InvalidCodestream
		}
		for c := range s.Components {
			for r := 0; r <= s.Components[c].Levels; r += 1 {
				for l := 0; l < s.Layers; l += 1 {
					precincts(c, r, l)
				}
			}
		}

	default:
		return nil, fault.InvalidCodestream
	}
	return order, nil
}

func singlePrecincts(s *target.Structure, tile int) bool {
	for c := range s.Components {
		for r := 0; r <= s.Components[c].Levels; r += 1 {
			if s.NumPrecincts(tile, c, r) > 1 {
				return false
			}
		}
	}
	return true
}

// Package fftmem implements the linear first-fit arena packer described
// in spec §4.4: given a fixed byte budget and an ordered list of FFT
// instances, it greedily assigns each enabled instance its scratch region
// (two "big" double-buffers plus the L/2 overlap-retention buffer),
// disabling or failing instances that do not fit.
package fftmem

import "fmt"

// HeaderPad is the fixed per-big-buffer byte count reserved in front of
// the sample region for in-place ADCP/WS/metadata headers (spec §4.3).
const HeaderPad = 3 + 4 + 11

const floatSize = 4

// Policy controls what happens when an instance's request does not fit.
type Policy int

const (
	// DisableOnOverflow skips an instance whose request does not fit and
	// continues with the next one; a later, smaller request can still be
	// placed — the default start-time policy.
	DisableOnOverflow Policy = iota
	// Strict fails the whole assignment with ErrNoMemory.
	Strict
)

// ErrNoMemory is returned by Assign under Strict policy when the arena
// cannot satisfy every requested instance.
var ErrNoMemory = fmt.Errorf("fftmem: arena exhausted")

// Request describes one channel's FFT memory need.
type Request struct {
	Channel int
	Enabled bool
	Length  int // L
}

// Assignment is the result for one channel: either a byte offset/size
// pair into the arena, or Disabled=true if it did not fit.
type Assignment struct {
	Channel       int
	Disabled      bool
	Offset        int
	Size          int
	HeaderReserve int
}

// sizeFor returns the byte footprint §4.4 specifies for one instance:
// 2*(L*4 + header_pad) + L/2*4.
func sizeFor(length int) int {
	big := length*floatSize + HeaderPad
	return 2*big + (length/2)*floatSize
}

// Assign packs requests, in the given order, into an arena of arenaSize
// bytes using a monotonic first-fit cursor.
func Assign(requests []Request, arenaSize int, policy Policy) ([]Assignment, error) {
	out := make([]Assignment, len(requests))
	cursor := 0
	for i, r := range requests {
		if !r.Enabled {
			out[i] = Assignment{Channel: r.Channel, Disabled: true}
			continue
		}
		need := sizeFor(r.Length)
		if cursor+need > arenaSize {
			if policy == Strict {
				return nil, ErrNoMemory
			}
			out[i] = Assignment{Channel: r.Channel, Disabled: true}
			continue
		}
		out[i] = Assignment{
			Channel:       r.Channel,
			Offset:        cursor,
			Size:          need,
			HeaderReserve: HeaderPad,
		}
		cursor += need
	}
	return out, nil
}

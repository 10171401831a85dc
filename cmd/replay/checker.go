package main

import (
	"errors"
	"fmt"

	persistlog "voxeledit.ai/internal/persistence/log"
)

var errDone = errors.New("done")

// checker validates one session's frame log: frame numbers strictly
// increase and every mesh delta is consistent with the meshes installed
// before it. Frames missing from the log were idle and carried no deltas, so
// a check from the start of the log knows every live mesh. A check that
// starts at from > 0 does not, and tolerates deltas naming unknown ids.
type checker struct {
	from, to uint64

	started bool
	strict  bool
	last    uint64
	live    map[uint64]bool

	s summary
}

type summary struct {
	Frames     int
	First      uint64
	Last       uint64
	Actions    int
	Reclaimed  int
	LiveMeshes int
	LastDigest string
}

func newChecker(from, to uint64) *checker {
	return &checker{from: from, to: to, strict: from == 0, live: map[uint64]bool{}}
}

func (c *checker) check(e persistlog.FrameEntry) error {
	if e.Frame < c.from {
		return nil
	}
	if c.to != 0 && e.Frame > c.to {
		return errDone
	}
	if c.started && e.Frame <= c.last {
		return fmt.Errorf("frame order: %d after %d", e.Frame, c.last)
	}
	if !c.started {
		c.started = true
		c.s.First = e.Frame
	}
	c.last = e.Frame

	for _, d := range e.Deltas {
		switch d.Kind {
		case "upsert":
			if d.ReplacedID != 0 {
				if c.strict && !c.live[d.ReplacedID] {
					return fmt.Errorf("frame %d: %v replaces unknown mesh %d", e.Frame, d.Key, d.ReplacedID)
				}
				delete(c.live, d.ReplacedID)
			}
			if c.live[d.ID] {
				return fmt.Errorf("frame %d: mesh id %d reused", e.Frame, d.ID)
			}
			c.live[d.ID] = true
		case "remove":
			if c.strict && !c.live[d.ID] {
				return fmt.Errorf("frame %d: %v removes unknown mesh %d", e.Frame, d.Key, d.ID)
			}
			delete(c.live, d.ID)
		default:
			return fmt.Errorf("frame %d: unknown delta kind %q", e.Frame, d.Kind)
		}
	}

	c.s.Frames++
	c.s.Last = e.Frame
	c.s.Actions += len(e.Actions)
	c.s.Reclaimed += len(e.Reclaimed)
	if e.Digest != "" {
		c.s.LastDigest = e.Digest
	}
	return nil
}

func (c *checker) summary() summary {
	s := c.s
	s.LiveMeshes = len(c.live)
	return s
}

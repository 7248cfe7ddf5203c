package emu

import (
	"sort"
	"time"

	"github.com/sarchlab/rv32sim/insts"
)

type opStats struct {
	count uint64
	total time.Duration
}

// OpProfile is the time spent in one opcode family.
type OpProfile struct {
	Name  string
	Count uint64
	Total time.Duration
}

// Average returns the mean time per instruction.
func (p OpProfile) Average() time.Duration {
	if p.Count == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Count)
}

// Profile returns the per-family buckets collected with WithProfiling,
// most expensive first. It is empty when profiling is off.
func (e *Emulator) Profile() []OpProfile {
	var out []OpProfile
	for op, s := range e.profile {
		if s.count == 0 {
			continue
		}
		out = append(out, OpProfile{
			Name:  OpcodeName(insts.Opcode(op)),
			Count: s.count,
			Total: s.total,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

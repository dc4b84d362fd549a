// Package network provides the distributed synchronisation primitive the
// feature-parallel and data-parallel tree learners depend on: a single
// allreduce(send, recv, op) operation, plus a local implementation that
// makes num_machines=1 training work without any transport at all (§1, §5).
package network

import (
	"context"
	"time"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// ReduceOp combines two same-sized float64 buffers element-wise.
type ReduceOp func(dst, src []float64)

// SumOp is the reducer used by data-parallel histogram sync.
func SumOp(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// ArgmaxGainOp is the reducer used by feature-parallel best-split sync: it
// keeps whichever candidate (encoded as [gain, machineID, ...payload]) has
// the larger gain, breaking ties toward the lower machine id.
func ArgmaxGainOp(dst, src []float64) {
	if len(src) == 0 || len(dst) == 0 {
		return
	}
	if src[0] > dst[0] || (src[0] == dst[0] && src[1] < dst[1]) {
		copy(dst, src)
	}
}

// Allreduce is the single distributed primitive the spec assumes (§1):
// every machine contributes send, every machine receives the same
// element-wise reduction of all machines' contributions.
type Allreduce interface {
	// Reduce combines send (this machine's contribution) with every other
	// machine's send buffer via op, and returns the identical result on
	// every machine. Blocks until the timeout set at construction elapses
	// or every machine has contributed.
	Reduce(ctx context.Context, send []float64, op ReduceOp) ([]float64, error)
	// NumMachines reports the Allreduce's machine count.
	NumMachines() int
	// MachineID reports this process's rank in [0, NumMachines).
	MachineID() int
}

// Local is the single-process Allreduce used when num_machines=1: Reduce
// is the identity, since there is nothing else to combine with.
type Local struct{}

func (Local) Reduce(_ context.Context, send []float64, _ ReduceOp) ([]float64, error) {
	out := make([]float64, len(send))
	copy(out, send)
	return out, nil
}

func (Local) NumMachines() int { return 1 }
func (Local) MachineID() int   { return 0 }

// barrierReduce is the shared implementation behind channel-based
// multi-machine Allreduce within a single process (used by tests and by
// distributed deployments that colocate ranks as goroutines rather than
// separate processes; a real multi-host deployment swaps the channels for
// a socket transport behind the same interface).
type barrierReduce struct {
	machineID   int
	numMachines int
	timeout     time.Duration

	in  []chan []float64
	out []chan []float64
}

// NewBarrier builds numMachines Allreduce handles that synchronise with
// each other in-process via channels, one handle per machine id. Every
// handle must call Reduce the same number of times, in lockstep, or the
// group deadlocks until timeout.
func NewBarrier(numMachines int, timeout time.Duration) []Allreduce {
	if numMachines <= 1 {
		return []Allreduce{Local{}}
	}
	channels := make([]chan []float64, numMachines)
	for i := range channels {
		channels[i] = make(chan []float64)
	}
	handles := make([]Allreduce, numMachines)
	for i := 0; i < numMachines; i++ {
		handles[i] = &barrierReduce{
			machineID:   i,
			numMachines: numMachines,
			timeout:     timeout,
			in:          channels,
			out:         channels,
		}
	}
	return handles
}

func (b *barrierReduce) NumMachines() int { return b.numMachines }
func (b *barrierReduce) MachineID() int   { return b.machineID }

// Reduce broadcasts send to every other machine's inbound channel, then
// waits for all numMachines contributions and folds them together with
// op, in machine-id order for determinism (§4.7: distributed results must
// be deterministic at fixed machine count).
func (b *barrierReduce) Reduce(ctx context.Context, send []float64, op ReduceOp) ([]float64, error) {
	deadline := b.timeout
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	// Broadcast our contribution to every other peer; our own contribution
	// seeds result directly below instead of round-tripping through a channel.
	for m := 0; m < b.numMachines; m++ {
		if m == b.machineID {
			continue
		}
		msg := send
		select {
		case b.in[m] <- msg:
		case <-ctx.Done():
			return nil, gbdterrors.NewDistributedError("allreduce", ctx.Err().Error())
		case <-timer.C:
			return nil, gbdterrors.NewDistributedError("allreduce", "timed out broadcasting contribution")
		}
	}

	result := make([]float64, len(send))
	copy(result, send)
	for received := 1; received < b.numMachines; received++ {
		select {
		case peer := <-b.in[b.machineID]:
			if len(peer) != len(send) {
				return nil, gbdterrors.NewDistributedError("allreduce", "buffer size mismatch across machines")
			}
			op(result, peer)
		case <-ctx.Done():
			return nil, gbdterrors.NewDistributedError("allreduce", ctx.Err().Error())
		case <-timer.C:
			return nil, gbdterrors.NewDistributedError("allreduce", "timed out waiting for peers")
		}
	}
	return result, nil
}

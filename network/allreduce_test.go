package network

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalReduceIsIdentity(t *testing.T) {
	l := Local{}
	assert.Equal(t, 1, l.NumMachines())
	assert.Equal(t, 0, l.MachineID())

	out, err := l.Reduce(context.Background(), []float64{1, 2, 3}, SumOp)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, out)
}

func TestSumOpAccumulates(t *testing.T) {
	dst := []float64{1, 2, 3}
	SumOp(dst, []float64{10, 20, 30})
	assert.Equal(t, []float64{11, 22, 33}, dst)
}

func TestArgmaxGainOpKeepsHigherGainAndTieBreak(t *testing.T) {
	dst := []float64{1.0, 2} // gain=1.0, machineID=2
	ArgmaxGainOp(dst, []float64{2.0, 1})
	assert.Equal(t, []float64{2.0, 1}, dst) // higher gain wins

	dst2 := []float64{5.0, 3}
	ArgmaxGainOp(dst2, []float64{5.0, 1}) // tie, lower machine id wins
	assert.Equal(t, []float64{5.0, 1}, dst2)
}

// TestBarrierReduceSumsAcrossMachines exercises the in-process multi-machine
// path: three handles each contribute a distinct vector and must all see
// the same summed result (§4.7 determinism at fixed machine count).
func TestBarrierReduceSumsAcrossMachines(t *testing.T) {
	handles := NewBarrier(3, 2*time.Second)
	require.Len(t, handles, 3)

	contributions := [][]float64{{1, 1}, {2, 2}, {3, 3}}
	results := make([][]float64, 3)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := handles[i].Reduce(context.Background(), contributions[i], SumOp)
			require.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	want := []float64{6, 6}
	for i := range results {
		assert.Equal(t, want, results[i])
	}
}

func TestNewBarrierSingleMachineReturnsLocal(t *testing.T) {
	handles := NewBarrier(1, time.Second)
	require.Len(t, handles, 1)
	_, ok := handles[0].(Local)
	assert.True(t, ok)
}

func TestBarrierReduceTimesOutWithoutAllPeers(t *testing.T) {
	handles := NewBarrier(2, 50*time.Millisecond)
	_, err := handles[0].Reduce(context.Background(), []float64{1}, SumOp)
	assert.Error(t, err)
}

package comm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockPartitionCoversRange(t *testing.T) {
	for _, tc := range []struct{ n, size int }{
		{10, 1}, {10, 3}, {7, 4}, {100, 16}, {3, 8},
	} {
		covered := make([]int, tc.n)
		prevStop := 0
		for rank := 0; rank < tc.size; rank++ {
			start, stop := BlockPartition(tc.n, tc.size, rank)
			require.Equal(t, prevStop, start, "n=%d size=%d rank=%d", tc.n, tc.size, rank)
			for i := start; i < stop; i++ {
				covered[i]++
			}
			prevStop = stop
		}
		require.Equal(t, tc.n, prevStop)
		for i, c := range covered {
			assert.Equal(t, 1, c, "zone %d", i)
		}
	}
}

func TestBlockPartitionRemainderFirst(t *testing.T) {
	// 7 zones over 4 ranks: the first three ranks get the extras
	sizes := []int{}
	for rank := 0; rank < 4; rank++ {
		start, stop := BlockPartition(7, 4, rank)
		sizes = append(sizes, stop-start)
	}
	assert.Equal(t, []int{2, 2, 2, 1}, sizes)
}

func TestSerialCommunicator(t *testing.T) {
	var c Serial
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())
	x := []float64{1, 2, 3}
	c.AllReduceSum(x)
	assert.Equal(t, []float64{1, 2, 3}, x)
}

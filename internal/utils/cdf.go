package utils

import (
	"fmt"
	"sort"
)

// CDFArray is a monotone prefix sum over non-negative weights. After
// Normalize the last entry is 1 and Sample inverts the distribution.
type CDFArray struct {
	y   []float64
	sum float64
}

func NewCDFArray(n int) CDFArray {
	return CDFArray{y: make([]float64, n)}
}

func (c *CDFArray) Size() int { return len(c.y) }

func (c *CDFArray) Resize(n int) {
	c.y = make([]float64, n)
	c.sum = 0
}

// Wipe zeroes the array without reallocating.
func (c *CDFArray) Wipe() {
	for i := range c.y {
		c.y[i] = 0
	}
	c.sum = 0
}

// SetValue sets the weight of bin i. Weights must be set in index order;
// the entry stores the running prefix sum.
func (c *CDFArray) SetValue(i int, w float64) {
	if w < 0 {
		panic(fmt.Sprintf("negative cdf weight %e at bin %d", w, i))
	}
	if i == 0 {
		c.y[0] = w
	} else {
		c.y[i] = c.y[i-1] + w
	}
}

// GetValue returns the weight of bin i (the prefix-sum difference).
func (c *CDFArray) GetValue(i int) float64 {
	if i == 0 {
		return c.y[0]
	}
	return c.y[i] - c.y[i-1]
}

// Normalize scales the prefix sums so the last entry is 1.
func (c *CDFArray) Normalize() {
	last := c.y[len(c.y)-1]
	c.sum = last
	if last == 0 {
		return
	}
	for i := range c.y {
		c.y[i] /= last
	}
}

// Sum is the total weight before normalization.
func (c *CDFArray) Sum() float64 { return c.sum }

// Sample returns the index i with CDF[i-1] <= u < CDF[i].
func (c *CDFArray) Sample(u float64) int {
	i := sort.SearchFloat64s(c.y, u)
	// skip past any empty leading bins sharing the same prefix value
	for i < len(c.y)-1 && c.y[i] <= u {
		i++
	}
	if i >= len(c.y) {
		i = len(c.y) - 1
	}
	return i
}

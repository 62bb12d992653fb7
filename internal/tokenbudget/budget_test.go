package tokenbudget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_Deterministic(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "hello world", "hi, there!", "one\ntwo\tthree"}
	for _, in := range inputs {
		a := Estimate(in)
		b := Estimate(in)
		assert.Equal(t, a, b)
	}
}

func TestEstimate_PunctuationCountsSeparately(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Estimate(""))
	assert.Equal(t, 2, Estimate("hello world"))
	// "hi" + "," + "there" + "!"
	assert.Equal(t, 4, Estimate("hi, there!"))
}

func TestBudget_FitsAndAdd(t *testing.T) {
	t.Parallel()

	b := NewBudget(10, 2)
	assert.Equal(t, 8, b.Available())

	assert.True(t, b.Fits("one two three"))
	assert.True(t, b.Add("one two three")) // 3 tokens
	assert.Equal(t, 3, b.Used())
	assert.Equal(t, 5, b.Available())

	assert.False(t, b.Fits("four five six seven eight nine"))
	assert.False(t, b.Add("four five six seven eight nine"))
	assert.Equal(t, 3, b.Used())
}

func TestBudget_ReservedResponseReducesAvailable(t *testing.T) {
	t.Parallel()

	b := NewBudget(5, 5)
	assert.Equal(t, 0, b.Available())
	assert.False(t, b.Add("x"))
}

func TestBudget_Reset(t *testing.T) {
	t.Parallel()

	b := NewBudget(10, 0)
	assert.True(t, b.Add("one two"))
	assert.Equal(t, 2, b.Used())
	b.Reset()
	assert.Equal(t, 0, b.Used())
	assert.Equal(t, 10, b.Available())
}

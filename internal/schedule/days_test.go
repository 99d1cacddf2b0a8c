package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDays(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"mon-fri", []int{1, 2, 3, 4, 5}},
		{"Mon,Wed,Fri", []int{1, 3, 5}},
		{"1-5", []int{1, 2, 3, 4, 5}},
		{"sat,sun", []int{0, 6}},
		{"fri-mon", []int{0, 1, 5, 6}},
		{"wed, wed ,3", []int{3}},
		{"", []int{}},
		{"none", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDays(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDays_Invalid(t *testing.T) {
	for _, in := range []string{"funday", "7", "mon-", "-1"} {
		_, err := ParseDays(in)
		assert.ErrorIs(t, err, ErrInvalid, in)
	}
}

func TestFormatDays(t *testing.T) {
	assert.Equal(t, "Mon-Fri", FormatDays([]int{5, 4, 3, 2, 1}))
	assert.Equal(t, "Mon,Wed,Fri", FormatDays([]int{1, 3, 5}))
	assert.Equal(t, "Sun,Sat", FormatDays([]int{6, 0}))
	assert.Equal(t, "Sun,Mon,Wed-Fri", FormatDays([]int{0, 1, 3, 4, 5}))
	assert.Equal(t, "none", FormatDays(nil))

	days, err := ParseDays(FormatDays([]int{0, 1, 3, 4, 5}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3, 4, 5}, days)
}

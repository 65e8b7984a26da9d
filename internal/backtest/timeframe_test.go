package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("1m")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, tf.Duration)

	tf, err = ParseTimeframe(" 4H ")
	require.NoError(t, err)
	assert.Equal(t, "4h", tf.Key)
	assert.Equal(t, 4*time.Hour, tf.Duration)

	_, err = ParseTimeframe("7m")
	assert.Error(t, err)
	_, err = ParseTimeframe("")
	assert.Error(t, err)
}

func TestSupportedTimeframesSorted(t *testing.T) {
	keys := SupportedTimeframes()
	assert.Contains(t, keys, "1m")
	assert.Contains(t, keys, "1d")
	assert.Len(t, keys, 7)
}

func TestAlignRange(t *testing.T) {
	tf, err := ParseTimeframe("1m")
	require.NoError(t, err)

	start, end := tf.AlignRange(61_500, 185_000)
	assert.Equal(t, int64(60_000), start)
	assert.Equal(t, int64(180_000), end)

	// Swapped bounds are normalized.
	start, end = tf.AlignRange(185_000, 61_500)
	assert.Equal(t, int64(60_000), start)
	assert.Equal(t, int64(180_000), end)

	// A degenerate range collapses to a single grid point.
	start, end = tf.AlignRange(61_000, 61_500)
	assert.Equal(t, start, end)
}

package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferDeliversWhenEmpty(t *testing.T) {
	ch := make(chan Batch, 1)
	batch := Batch{Type: SourceAudio, Timestamp: time.Now()}

	Offer(ch, batch)

	require.Len(t, ch, 1)
	assert.Equal(t, batch.Timestamp, (<-ch).Timestamp)
}

func TestOfferDropsStaleBatch(t *testing.T) {
	ch := make(chan Batch, 1)
	stale := Batch{Samples: []float32{1}}
	fresh := Batch{Samples: []float32{2}}

	Offer(ch, stale)
	Offer(ch, fresh)

	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, float32(2), got.Samples[0])
}

func TestBatchEmpty(t *testing.T) {
	assert.True(t, Batch{}.Empty())
	assert.False(t, Batch{Samples: []float32{0}}.Empty())
	assert.False(t, Batch{Pixels: []uint8{0, 0, 0, 255}}.Empty())
}

package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendPreservesOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Turn{Question: "第一问", Answer: "第一答", Mode: "hybrid"})
	tr.Append(Turn{Question: "第二问", Answer: "第二答", Mode: "vector"})

	turns := tr.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "第一问", turns[0].Question)
	assert.Equal(t, "第二问", turns[1].Question)
	assert.False(t, turns[0].AskedAt.IsZero())
}

func TestTranscript_TurnsReturnsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Turn{Question: "q"})

	turns := tr.Turns()
	turns[0].Question = "mutated"
	assert.Equal(t, "q", tr.Turns()[0].Question)
}

func TestTranscript_Reset(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Turn{Question: "q"})
	tr.Reset()
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Turns())
}

func TestTranscript_ConcurrentAppend(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Append(Turn{Question: "q"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len())
}

package intrusive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type mpscNode struct {
	hook     Hook[mpscNode]
	producer int
	seq      int
}

func (n *mpscNode) Link() *Hook[mpscNode] { return &n.hook }

func TestMPSC_SingleProducerPreservesOrder(t *testing.T) {
	var q MPSC[mpscNode, *mpscNode]
	const n = 1000
	for i := 0; i < n; i++ {
		q.Push(&mpscNode{seq: i})
	}

	for i := 0; i < n; i++ {
		node, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, node.seq)
	}
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestMPSC_ConcurrentProducersPerProducerOrderPreserved(t *testing.T) {
	var q MPSC[mpscNode, *mpscNode]
	const producers = 8
	const perProducer = 2000

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(&mpscNode{producer: p, seq: i})
			}
		}(p)
	}

	lastSeq := make([]int, producers)
	for i := range lastSeq {
		lastSeq[i] = -1
	}
	total := 0
	for total < producers*perProducer {
		node, ok := q.TryPop()
		if !ok {
			continue
		}
		require.Equal(t, lastSeq[node.producer]+1, node.seq,
			"producer %d delivered out of order", node.producer)
		lastSeq[node.producer] = node.seq
		total++
	}
	wg.Wait()
}

func TestMPSC_Drain(t *testing.T) {
	var q MPSC[mpscNode, *mpscNode]
	for i := 0; i < 5; i++ {
		q.Push(&mpscNode{seq: i})
	}
	var fifo FIFO[mpscNode, *mpscNode]
	moved := q.Drain(&fifo)
	require.Equal(t, 5, moved)
	require.Equal(t, 5, fifo.Len())

	for i := 0; i < 5; i++ {
		node, ok := fifo.Pop()
		require.True(t, ok)
		require.Equal(t, i, node.seq)
	}
}

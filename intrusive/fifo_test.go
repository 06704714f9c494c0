package intrusive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fifoNode struct {
	hook Hook[fifoNode]
	val  int
}

func (n *fifoNode) Link() *Hook[fifoNode] { return &n.hook }

func TestFIFO_PushPopOrder(t *testing.T) {
	var q FIFO[fifoNode, *fifoNode]
	nodes := make([]*fifoNode, 5)
	for i := range nodes {
		nodes[i] = &fifoNode{val: i}
		q.Push(nodes[i])
	}
	require.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		node, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, node.val)
	}
	_, ok := q.Pop()
	require.False(t, ok)
	require.Equal(t, 0, q.Len())
	require.True(t, q.Empty())
}

func TestFIFO_Splice(t *testing.T) {
	var a, b FIFO[fifoNode, *fifoNode]
	a.Push(&fifoNode{val: 1})
	a.Push(&fifoNode{val: 2})
	b.Push(&fifoNode{val: 3})
	b.Push(&fifoNode{val: 4})

	a.Splice(&b)
	require.Equal(t, 0, b.Len())
	require.True(t, b.Empty())
	require.Equal(t, 4, a.Len())

	var got []int
	for {
		node, ok := a.Pop()
		if !ok {
			break
		}
		got = append(got, node.val)
	}
	require.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestFIFO_InsertSorted(t *testing.T) {
	var q FIFO[fifoNode, *fifoNode]
	less := func(a, b *fifoNode) bool { return a.val < b.val }

	for _, v := range []int{5, 1, 4, 2, 3} {
		q.InsertSorted(&fifoNode{val: v}, less)
	}

	var got []int
	for {
		node, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, node.val)
	}
	require.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestFIFO_PushAfterPopAllowsRelink(t *testing.T) {
	var q FIFO[fifoNode, *fifoNode]
	node := &fifoNode{val: 1}
	q.Push(node)
	popped, ok := q.Pop()
	require.True(t, ok)
	require.Same(t, node, popped)

	// a node may be pushed again once popped
	q.Push(node)
	require.Equal(t, 1, q.Len())
}

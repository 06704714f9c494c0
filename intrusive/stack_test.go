package intrusive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stackNode struct {
	hook Hook[stackNode]
	val  int
}

func (n *stackNode) Link() *Hook[stackNode] { return &n.hook }

func TestStack_LIFOOrder(t *testing.T) {
	var s Stack[stackNode, *stackNode]
	for i := 0; i < 3; i++ {
		s.Push(&stackNode{val: i})
	}
	require.Equal(t, 3, s.Len())

	top, ok := s.Top()
	require.True(t, ok)
	require.Equal(t, 2, top.val)

	for i := 2; i >= 0; i-- {
		node, ok := s.Pop()
		require.True(t, ok)
		require.Equal(t, i, node.val)
	}
	_, ok = s.Pop()
	require.False(t, ok)
}

package list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(vals ...int) []*Node[int] {
	out := make([]*Node[int], len(vals))
	for i, v := range vals {
		out[i] = &Node[int]{Value: v}
	}
	return out
}

func TestList_ZeroValueUsable(t *testing.T) {
	var l List[int]
	assert.Equal(t, 0, l.Len())
	assert.Nil(t, l.Front())
	assert.Empty(t, l.Values())
	assert.False(t, l.Remove(&Node[int]{}))
}

func TestList_PushAndOrder(t *testing.T) {
	var l List[int]
	ns := nodes(1, 2, 3)
	l.PushBack(ns[1])
	l.PushBack(ns[2])
	l.PushFront(ns[0])
	assert.Equal(t, []int{1, 2, 3}, l.Values())

	extra := &Node[int]{Value: 9}
	require.True(t, l.InsertAfter(extra, ns[0]))
	assert.Equal(t, []int{1, 9, 2, 3}, l.Values())
}

func TestList_RemoveIsIdempotent(t *testing.T) {
	var l List[int]
	ns := nodes(1, 2, 3)
	for _, n := range ns {
		l.PushBack(n)
	}
	assert.True(t, l.Remove(ns[1]))
	assert.False(t, l.Remove(ns[1]), "second removal must report absence")
	assert.False(t, ns[1].Linked())
	assert.Equal(t, []int{1, 3}, l.Values())
	assert.Equal(t, 2, l.Len())
}

func TestList_RemoveFromOtherListRejected(t *testing.T) {
	var a, b List[int]
	n := &Node[int]{Value: 1}
	a.PushBack(n)
	assert.False(t, b.Remove(n))
	assert.True(t, a.Contains(n))

	b.PushBack(n)
	assert.Equal(t, 0, a.Len(), "moving a node unlinks it from its previous list")
	assert.True(t, b.Contains(n))
}

func TestList_InsertAfterForeignMark(t *testing.T) {
	var a, b List[int]
	mark := &Node[int]{Value: 1}
	a.PushBack(mark)
	assert.False(t, b.InsertAfter(&Node[int]{Value: 2}, mark))
}

func TestList_DrainUnlinksBeforeCallback(t *testing.T) {
	var l List[int]
	for _, n := range nodes(1, 2, 3) {
		l.PushBack(n)
	}
	var seen []int
	l.Drain(func(n *Node[int]) {
		assert.False(t, n.Linked())
		seen = append(seen, n.Value)
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 0, l.Len())
}

func TestList_EachAllowsRemoval(t *testing.T) {
	var l List[int]
	for _, n := range nodes(1, 2, 3, 4) {
		l.PushBack(n)
	}
	l.Each(func(n *Node[int]) bool {
		if n.Value%2 == 0 {
			l.Remove(n)
		}
		return true
	})
	assert.Equal(t, []int{1, 3}, l.Values())

	var visited int
	l.Each(func(n *Node[int]) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

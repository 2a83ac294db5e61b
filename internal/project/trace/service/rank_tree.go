package service

import "cmp"

// rankTree is a treap ordered like orderedEntry and augmented with subtree sizes. Node
// priorities are a hash of the ingestion sequence, so the shape does not depend on the
// order keys arrive in.
type rankTree[K cmp.Ordered] struct {
	root *rankNode[K]
}

type rankNode[K cmp.Ordered] struct {
	key         K
	seq         uint64
	priority    uint64
	size        int
	left, right *rankNode[K]
}

func (n *rankNode[K]) sizeOf() int {
	if n == nil {
		return 0
	}
	return n.size
}

func (n *rankNode[K]) resize() {
	n.size = 1 + n.left.sizeOf() + n.right.sizeOf()
}

func (n *rankNode[K]) less(key K, seq uint64) bool {
	if n.key != key {
		return n.key < key
	}
	return n.seq < seq
}

func (r *rankTree[K]) len() int {
	return r.root.sizeOf()
}

func (r *rankTree[K]) insert(key K, seq uint64) {
	r.root = insertRank(r.root, &rankNode[K]{key: key, seq: seq, priority: mix64(seq), size: 1})
}

func insertRank[K cmp.Ordered](n, fresh *rankNode[K]) *rankNode[K] {
	if n == nil {
		return fresh
	}
	if n.less(fresh.key, fresh.seq) {
		n.right = insertRank(n.right, fresh)
		if n.right.priority > n.priority {
			n = rotateLeft(n)
		}
	} else {
		n.left = insertRank(n.left, fresh)
		if n.left.priority > n.priority {
			n = rotateRight(n)
		}
	}
	n.resize()
	return n
}

func rotateLeft[K cmp.Ordered](n *rankNode[K]) *rankNode[K] {
	r := n.right
	n.right = r.left
	n.resize()
	r.left = n
	return r
}

func rotateRight[K cmp.Ordered](n *rankNode[K]) *rankNode[K] {
	l := n.left
	n.left = l.right
	n.resize()
	l.right = n
	return l
}

// countLess returns the number of keys strictly below key.
func (r *rankTree[K]) countLess(key K) int {
	n := 0
	for node := r.root; node != nil; {
		if node.key < key {
			n += node.left.sizeOf() + 1
			node = node.right
		} else {
			node = node.left
		}
	}
	return n
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

package planner

import "math/rand"

// ivNode is a node of the reservation interval tree: a
// randomized treap keyed by (start, id), augmented with subtreeMaxLast so
// that iterOverlap can prune whole subtrees, giving O(log n + k) overlap
// queries.
type ivNode struct {
	left, right    *ivNode
	priority       uint64
	res            *Reservation
	subtreeMaxLast int64
}

type intervalTree struct {
	root *ivNode
	rng  *rand.Rand
	size int
}

func newIntervalTree() *intervalTree {
	return &intervalTree{rng: rand.New(rand.NewSource(0x696e74657276616c))}
}

func compareIV(a, b *Reservation) int {
	switch {
	case a.start < b.start:
		return -1
	case a.start > b.start:
		return 1
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	default:
		return 0
	}
}

func pullIV(n *ivNode) {
	n.subtreeMaxLast = n.res.last
	if n.left != nil && n.left.subtreeMaxLast > n.subtreeMaxLast {
		n.subtreeMaxLast = n.left.subtreeMaxLast
	}
	if n.right != nil && n.right.subtreeMaxLast > n.subtreeMaxLast {
		n.subtreeMaxLast = n.right.subtreeMaxLast
	}
}

func rotateIVRight(y *ivNode) *ivNode {
	x := y.left
	y.left = x.right
	x.right = y
	pullIV(y)
	pullIV(x)
	return x
}

func rotateIVLeft(x *ivNode) *ivNode {
	y := x.right
	x.right = y.left
	y.left = x
	pullIV(x)
	pullIV(y)
	return y
}

func (t *intervalTree) insert(r *Reservation) {
	n := &ivNode{res: r, priority: t.rng.Uint64()}
	t.root = insertIV(t.root, n)
	t.size++
}

func insertIV(root, node *ivNode) *ivNode {
	if root == nil {
		pullIV(node)
		return node
	}
	if compareIV(node.res, root.res) < 0 {
		root.left = insertIV(root.left, node)
		if root.left.priority > root.priority {
			root = rotateIVRight(root)
		} else {
			pullIV(root)
		}
	} else {
		root.right = insertIV(root.right, node)
		if root.right.priority > root.priority {
			root = rotateIVLeft(root)
		} else {
			pullIV(root)
		}
	}
	return root
}

func (t *intervalTree) remove(r *Reservation) {
	t.root = deleteIV(t.root, r)
	t.size--
}

func deleteIV(root *ivNode, r *Reservation) *ivNode {
	if root == nil {
		return nil
	}
	switch c := compareIV(r, root.res); {
	case c < 0:
		root.left = deleteIV(root.left, r)
		pullIV(root)
	case c > 0:
		root.right = deleteIV(root.right, r)
		pullIV(root)
	default:
		root = mergeIV(root.left, root.right)
	}
	return root
}

func mergeIV(l, r *ivNode) *ivNode {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	if l.priority > r.priority {
		l.right = mergeIV(l.right, r)
		pullIV(l)
		return l
	}
	r.left = mergeIV(l, r.left)
	pullIV(r)
	return r
}

// iterOverlap calls fn for every reservation whose [start, last] intersects
// [lo, hi], in an unspecified order, stopping early if fn returns false.
func (t *intervalTree) iterOverlap(lo, hi int64, fn func(*Reservation) bool) {
	searchIV(t.root, lo, hi, fn)
}

func searchIV(n *ivNode, lo, hi int64, fn func(*Reservation) bool) bool {
	if n == nil {
		return true
	}
	if n.left != nil && n.left.subtreeMaxLast >= lo {
		if !searchIV(n.left, lo, hi, fn) {
			return false
		}
	}
	if n.res.start <= hi && n.res.last >= lo {
		if !fn(n.res) {
			return false
		}
	}
	if n.res.start <= hi {
		if !searchIV(n.right, lo, hi, fn) {
			return false
		}
	}
	return true
}

// verify checks that every node's subtreeMaxLast equals max(last) over its
// subtree.
func (t *intervalTree) verify() bool {
	return verifyIV(t.root)
}

func verifyIV(n *ivNode) bool {
	if n == nil {
		return true
	}
	want := n.res.last
	if n.left != nil && n.left.subtreeMaxLast > want {
		want = n.left.subtreeMaxLast
	}
	if n.right != nil && n.right.subtreeMaxLast > want {
		want = n.right.subtreeMaxLast
	}
	if n.subtreeMaxLast != want {
		return false
	}
	return verifyIV(n.left) && verifyIV(n.right)
}

package trie

import (
	pair "github.com/notEpsilon/go-pair"
	"golang.org/x/exp/maps"
)

// trieNode is one node of a persistent trie. A node never changes after it
// became reachable from some trie's root; every mutation clones the nodes
// on its path and republishes a new root, so older roots stay intact and
// share every untouched subtree.
type trieNode struct {
	children    map[byte]*trieNode
	isValueNode bool
	value       any
}

func newTrieNode(children map[byte]*trieNode) *trieNode {
	if children == nil {
		children = make(map[byte]*trieNode)
	}
	return &trieNode{children: children}
}

func newTrieNodeWithValue(children map[byte]*trieNode, value any) *trieNode {
	if children == nil {
		children = make(map[byte]*trieNode)
	}
	return &trieNode{children: children, isValueNode: true, value: value}
}

// clone copies the node with a fresh children map so the copy can be
// rewired without touching the published original
func (n *trieNode) clone() *trieNode {
	return &trieNode{maps.Clone(n.children), n.isValueNode, n.value}
}

// cloneWithoutValue copies only the structure of the node. Used when a key
// is removed but the node still has children to hold up.
func (n *trieNode) cloneWithoutValue() *trieNode {
	return &trieNode{children: n.children}
}

// Trie is an immutable key-value store over byte-string keys. The zero
// value is the empty trie. Put and Remove leave the receiver untouched and
// return the resulting trie, so any number of goroutines may keep reading
// a root while others derive new ones from it.
type Trie struct {
	root *trieNode
}

// pathEntry remembers one step of a root-to-node walk: the node and the
// byte edge that led into it (unused for the root)
type pathEntry = pair.Pair[byte, *trieNode]

// Get returns the value stored at key. ok is false when the key is absent
// or its value is not a T.
func Get[T any](t Trie, key string) (value T, ok bool) {
	node := t.root
	if node == nil {
		return value, false
	}
	for i := 0; i < len(key); i++ {
		child, ok := node.children[key[i]]
		if !ok {
			var zero T
			return zero, false
		}
		node = child
	}
	if !node.isValueNode {
		return value, false
	}
	typed, ok := node.value.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}

// Put returns a trie which maps key to value and is otherwise identical to
// t. Existing nodes along the key are cloned, everything else is shared.
func Put[T any](t Trie, key string, value T) Trie {
	node := t.root
	if node == nil {
		node = newTrieNode(nil)
	}
	path := make([]pathEntry, 0, len(key)+1)
	path = append(path, pathEntry{Second: node})

	idx := 0
	for ; idx < len(key); idx++ {
		child, ok := node.children[key[idx]]
		if !ok {
			break
		}
		node = child
		path = append(path, pathEntry{First: key[idx], Second: child})
	}

	var chain *trieNode
	if idx == len(key) {
		// the terminal exists. rebuild it around the new value, keeping
		// its children
		chain = newTrieNodeWithValue(node.children, value)
		path = path[:len(path)-1]
	} else {
		// build the unmatched suffix bottom-up, value node at the tip
		chain = newTrieNodeWithValue(nil, value)
		for i := len(key) - 1; i >= idx+1; i-- {
			chain = newTrieNode(map[byte]*trieNode{key[i]: chain})
		}
	}

	childEdge := byte(0)
	if idx < len(key) {
		childEdge = key[idx]
	} else if len(key) > 0 {
		childEdge = key[len(key)-1]
	}
	return Trie{stitch(path, chain, childEdge)}
}

// Remove returns a trie without key. When the key holds no value the
// receiver is returned unchanged. Nodes left without value and children
// are pruned up to the nearest value-carrying or branching ancestor.
func (t Trie) Remove(key string) Trie {
	if t.root == nil {
		return Trie{}
	}
	node := t.root
	path := make([]pathEntry, 0, len(key)+1)
	path = append(path, pathEntry{Second: node})
	for i := 0; i < len(key); i++ {
		child, ok := node.children[key[i]]
		if !ok {
			return t
		}
		node = child
		path = append(path, pathEntry{First: key[i], Second: child})
	}
	if !node.isValueNode {
		return t
	}

	var chain *trieNode
	var childEdge byte
	if len(node.children) > 0 {
		// still an interior node. keep its structure, drop the value
		chain = node.cloneWithoutValue()
		childEdge = path[len(path)-1].First
		path = path[:len(path)-1]
	} else {
		// prune the dangling tail up to an ancestor that must stay
		prunedEdge := path[len(path)-1].First
		path = path[:len(path)-1]
		for len(path) > 0 {
			top := path[len(path)-1].Second
			if top.isValueNode || len(top.children) > 1 {
				break
			}
			prunedEdge = path[len(path)-1].First
			path = path[:len(path)-1]
		}
		if len(path) == 0 {
			return Trie{}
		}
		keeper := path[len(path)-1]
		chain = keeper.Second.clone()
		delete(chain.children, prunedEdge)
		childEdge = keeper.First
		path = path[:len(path)-1]
	}

	return Trie{stitch(path, chain, childEdge)}
}

// stitch clones the remaining ancestors bottom-up, hanging chain under
// each clone at the byte edge it replaces
func stitch(path []pathEntry, chain *trieNode, childEdge byte) *trieNode {
	for i := len(path) - 1; i >= 0; i-- {
		top := path[i].Second.clone()
		top.children[childEdge] = chain
		chain = top
		childEdge = path[i].First
	}
	return chain
}

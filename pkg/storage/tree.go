package storage

import "crypto/sha256"

// leaf is one committed key/value pair's contribution to the tree, kept
// sorted by key so the root is a deterministic function of the key set
// regardless of write order.
type leaf struct {
	key   []byte
	value []byte
	hash  [32]byte
}

// tree is a binary Merkle tree over every key currently committed to the
// engine, rebuilt wholesale on each Commit. Adapted from the teacher's
// merkle.Tree (pkg/merkle/tree.go): the pairwise SHA-256 combine and
// odd-node duplication rule are unchanged, generalized from a fixed
// batch-of-transaction-hashes input to a live, key-addressable leaf set so
// Prove can answer "is (key,value) in the committed state" rather than only
// "is this hash among the leaves I was built from".
type tree struct {
	leaves []leaf
	levels [][][32]byte // level 0 = leaf hashes, last level = root
	index  map[string]int
}

func hashLeaf(key, value []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{0x00}) // domain-separate leaf hashes from internal nodes
	h.Write(key)
	h.Write(value)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashPair(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// buildTree sorts pairs by key and constructs the level structure. An empty
// key set produces a tree whose root is the hash of the empty string,
// distinguishing "nothing committed" from any real leaf hash.
func buildTree(pairs [][2][]byte) *tree {
	t := &tree{index: make(map[string]int, len(pairs))}

	for _, kv := range pairs {
		t.leaves = append(t.leaves, leaf{key: kv[0], value: kv[1], hash: hashLeaf(kv[0], kv[1])})
	}
	for i, l := range t.leaves {
		t.index[string(l.key)] = i
	}

	level := make([][32]byte, len(t.leaves))
	for i, l := range t.leaves {
		level[i] = l.hash
	}
	if len(level) == 0 {
		level = [][32]byte{sha256.Sum256(nil)}
	}
	t.levels = append(t.levels, level)

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i])) // duplicate odd tail
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}

	return t
}

func (t *tree) root() [32]byte {
	return t.levels[len(t.levels)-1][0]
}

func (t *tree) leafIndex(key []byte) (int, bool) {
	i, ok := t.index[string(key)]
	return i, ok
}

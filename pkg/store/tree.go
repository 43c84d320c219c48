package store

import "strings"

// Tree is a prefix-scoped view of the store, the unit handed to components
// that own a configuration subtree (one per community, plus the global one).
// All methods address paths relative to the tree's root.
type Tree struct {
	root string
}

// Sub returns a view rooted at the given path prefix.
func Sub(root string) Tree {
	return Tree{root: strings.TrimSuffix(root, "/")}
}

// Sub returns a child view rooted deeper inside this tree.
func (t Tree) Sub(path string) Tree {
	return Tree{root: t.abs(path)}
}

// Root returns the absolute root path of this view.
func (t Tree) Root() string { return t.root }

func (t Tree) abs(path string) string {
	if path == "" {
		return t.root
	}
	return t.root + "/" + path
}

// Get returns the value stored at the relative path.
func (t Tree) Get(path string) ([]byte, error) {
	return Get(t.abs(path))
}

// Set stores value at the relative path.
func (t Tree) Set(path string, value []byte) error {
	return Set(t.abs(path), value)
}

// Delete removes the value at the relative path.
func (t Tree) Delete(path string) error {
	return Delete(t.abs(path))
}

// Has reports whether the relative path holds a value.
func (t Tree) Has(path string) (bool, error) {
	return Has(t.abs(path))
}

// Keys lists the immediate child names under the relative path. Nested
// descendants collapse into their first segment, so a tree holding
// "channels/1" and "channels/2/x" yields ["1", "2"] for Keys("channels").
func (t Tree) Keys(path string) ([]string, error) {
	base := t.abs(path)
	full, err := List(base)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, k := range full {
		rel := strings.TrimPrefix(k, base+"/")
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			rel = rel[:i]
		}
		if _, ok := seen[rel]; ok {
			continue
		}
		seen[rel] = struct{}{}
		out = append(out, rel)
	}
	return out, nil
}

// DeleteAll removes every value under the relative path.
func (t Tree) DeleteAll(path string) error {
	return DeleteAll(t.abs(path))
}

// GetAndSet atomically transforms the value at the relative path.
func (t Tree) GetAndSet(path string, transform func([]byte) ([]byte, error)) error {
	return GetAndSet(t.abs(path), transform)
}

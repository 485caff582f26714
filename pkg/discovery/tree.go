package discovery

import (
	"sort"
	"strings"

	"github.com/disiqueira/gotree/v3"
)

// Node is a file or directory in an archive tree.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	IsDir    bool    `json:"is_dir"`
	Children []*Node `json:"children,omitempty"`
}

// Tree is the filtered hierarchy of an archive namelist. Nodes are held in a
// table keyed by normalized path; children are ordered directories first, then
// by name.
type Tree struct {
	Root  *Node `json:"root"`
	nodes map[string]*Node
}

// BuildTree builds the display hierarchy for an archive namelist, skipping
// every entry with a segment matching ignorePatterns.
func BuildTree(names []string, ignorePatterns []string) *Tree {
	ignore := newMatcher(ignorePatterns, false)
	tree := &Tree{
		Root:  &Node{IsDir: true},
		nodes: make(map[string]*Node),
	}

	for _, e := range parseEntries(names) {
		if ignore.ignored(e.segments) {
			continue
		}

		parent := tree.Root
		for i := range e.segments {
			nodePath := strings.Join(e.segments[:i+1], "/")
			isDir := i < len(e.segments)-1 || e.isDir

			node, ok := tree.nodes[nodePath]
			if !ok {
				node = &Node{Name: e.segments[i], Path: nodePath, IsDir: isDir}
				tree.nodes[nodePath] = node
				parent.Children = append(parent.Children, node)
			} else if isDir {
				node.IsDir = true
			}
			parent = node
		}
	}

	sortChildren(tree.Root)
	for _, node := range tree.nodes {
		sortChildren(node)
	}
	return tree
}

func sortChildren(node *Node) {
	sort.Slice(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})
}

// Lookup returns the node at a normalized path.
func (t *Tree) Lookup(nodePath string) (*Node, bool) {
	node, ok := t.nodes[nodePath]
	return node, ok
}

// Len returns the number of nodes below the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Walk visits every node depth-first in display order. depth is 1 for
// top-level nodes.
func (t *Tree) Walk(fn func(node *Node, depth int)) {
	type frame struct {
		node  *Node
		depth int
	}

	stack := make([]frame, 0, len(t.Root.Children))
	for i := len(t.Root.Children) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: t.Root.Children[i], depth: 1})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		fn(top.node, top.depth)

		children := top.node.Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: children[i], depth: top.depth + 1})
		}
	}
}

// Render draws the tree as text under rootLabel.
func (t *Tree) Render(rootLabel string) string {
	root := gotree.New(rootLabel)
	rendered := map[*Node]gotree.Tree{t.Root: root}

	parents := make(map[*Node]*Node, len(t.nodes))
	for _, node := range t.nodes {
		for _, child := range node.Children {
			parents[child] = node
		}
	}
	for _, child := range t.Root.Children {
		parents[child] = t.Root
	}

	t.Walk(func(node *Node, _ int) {
		label := node.Name
		if node.IsDir {
			label += "/"
		}
		rendered[node] = rendered[parents[node]].Add(label)
	})
	return root.Print()
}

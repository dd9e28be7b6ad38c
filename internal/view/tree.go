package view

import (
	"sort"
	"strings"
)

// Node is one entry of the workspace tree. Directories exist only because
// some file path passes through them.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	IsDir    bool    `json:"is_dir"`
	Children []*Node `json:"children,omitempty"`
}

// BuildTree derives the directory structure from a set of file paths.
// Directories sort before files, each group by name.
func BuildTree(paths []string) *Node {
	root := &Node{Name: "/", Path: "/", IsDir: true}

	for _, p := range paths {
		p = normalizePath(p)
		parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			continue
		}

		cur := root
		for i, part := range parts {
			last := i == len(parts)-1
			child := cur.child(part, !last)
			if child == nil {
				child = &Node{Name: part, Path: strings.TrimSuffix(cur.Path, "/") + "/" + part, IsDir: !last}
				cur.Children = append(cur.Children, child)
			}
			cur = child
		}
	}

	root.sort()
	return root
}

func (n *Node) child(name string, dir bool) *Node {
	for _, c := range n.Children {
		if c.Name == name && c.IsDir == dir {
			return c
		}
	}
	return nil
}

func (n *Node) sort() {
	sort.Slice(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})
	for _, c := range n.Children {
		if c.IsDir {
			c.sort()
		}
	}
}

// Render draws the tree with box-drawing connectors, one entry per line.
// maxDepth limits how many directory levels are expanded; zero means no limit.
func (n *Node) Render(maxDepth int) string {
	if len(n.Children) == 0 {
		return "(empty filesystem)"
	}

	var lines []string
	var walk func(node *Node, depth int, prefix string)
	walk = func(node *Node, depth int, prefix string) {
		if maxDepth > 0 && depth > maxDepth {
			return
		}
		for i, c := range node.Children {
			isLast := i == len(node.Children)-1
			connector := "├── "
			extension := "│   "
			if isLast {
				connector = "└── "
				extension = "    "
			}

			if c.IsDir {
				lines = append(lines, prefix+connector+c.Name+"/")
				walk(c, depth+1, prefix+extension)
				continue
			}
			lines = append(lines, prefix+connector+c.Name)
		}
	}
	walk(n, 0, "")
	return strings.Join(lines, "\n")
}

package entity

// TreeNode is the read model of a subtree. Children is never nil so it
// serializes as [] for leaves.
type TreeNode struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	IsAdmin  bool        `json:"is_admin"`
	Side     Side        `json:"side"`
	Children []*TreeNode `json:"children"`
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *TreeNode) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

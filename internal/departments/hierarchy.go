package departments

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// BuildHierarchy converts a flat list of departments, all belonging to one
// organization, into a forest ordered by department name. A department whose
// declared parent is absent from the input is treated as a root, so partial
// snapshots still build. Parent references that form a cycle are reported as
// ErrHierarchyCycle instead of being traversed.
//
// The construction is an explicit worklist over index-addressed nodes, so it
// runs in O(n) without recursion regardless of hierarchy depth.
func BuildHierarchy(depts []Department) ([]*DepartmentTree, error) {
	if len(depts) == 0 {
		return []*DepartmentTree{}, nil
	}

	present := make(map[int64]struct{}, len(depts))
	for _, d := range depts {
		present[d.ID] = struct{}{}
	}

	// Arena of tree nodes, one per input record, linked by index.
	nodes := make([]*DepartmentTree, len(depts))
	for i, d := range depts {
		nodes[i] = &DepartmentTree{Department: d}
	}

	childIdx := make(map[int64][]int, len(depts))
	var roots []int
	for i, d := range depts {
		if d.ParentDepartmentID == nil {
			roots = append(roots, i)
			continue
		}
		if _, ok := present[*d.ParentDepartmentID]; !ok {
			// Dangling parent: tolerate paginated or partially deleted
			// input by promoting the orphan to a root.
			roots = append(roots, i)
			continue
		}
		childIdx[*d.ParentDepartmentID] = append(childIdx[*d.ParentDepartmentID], i)
	}

	visited := make([]bool, len(depts))
	stack := append([]int(nil), roots...)
	reached := 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[i] {
			continue
		}
		visited[i] = true
		reached++
		for _, c := range childIdx[nodes[i].Department.ID] {
			nodes[i].Children = append(nodes[i].Children, nodes[c])
			stack = append(stack, c)
		}
	}

	// Every acyclic node is reachable from some root; leftovers sit on a
	// parent cycle.
	if reached != len(depts) {
		var cyclic []int64
		for i, d := range depts {
			if !visited[i] {
				cyclic = append(cyclic, d.ID)
			}
		}
		return nil, fmt.Errorf("%w: departments %v unreachable from any root", ErrHierarchyCycle, cyclic)
	}

	forest := make([]*DepartmentTree, 0, len(roots))
	for _, i := range roots {
		forest = append(forest, nodes[i])
	}
	sortForest(forest)
	return forest, nil
}

// FlattenHierarchy walks a forest depth-first and returns the departments in
// visit order. It is the inverse view used by exports and tests.
func FlattenHierarchy(forest []*DepartmentTree) []Department {
	var out []Department
	stack := make([]*DepartmentTree, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, forest[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n.Department)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// sortForest orders siblings by name at every level so hierarchy output is
// deterministic. Collation keeps the ordering sensible for non-ASCII names.
func sortForest(forest []*DepartmentTree) {
	c := collate.New(language.Und, collate.IgnoreCase)
	stack := append([]*DepartmentTree(nil), &DepartmentTree{Children: forest})
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sort.SliceStable(n.Children, func(i, j int) bool {
			return c.CompareString(n.Children[i].Department.Name, n.Children[j].Department.Name) < 0
		})
		stack = append(stack, n.Children...)
	}
}

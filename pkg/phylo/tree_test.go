package phylo

import (
	"errors"
	"sort"
	"testing"
)

// balanced4 builds the 4-tip tree ((1,2),(3,4)): root 5 over internals 6, 7.
func balanced4(t *testing.T) *Tree {
	t.Helper()
	tree, err := FromEdges(4, 5, []Edge{
		{5, 6}, {5, 7},
		{6, 1}, {6, 2},
		{7, 3}, {7, 4},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	return tree
}

func edgeSet(tr *Tree) map[Edge]bool {
	set := make(map[Edge]bool)
	for _, e := range tr.Postorder() {
		set[e] = true
	}
	return set
}

func TestNewTriple(t *testing.T) {
	tr, err := NewTriple(2, 4, 5, 5)
	if err != nil {
		t.Fatalf("NewTriple: %v", err)
	}
	if err := tr.Validate(); err == nil {
		// Only three of five tips are attached, so full validation must fail;
		// the attached component itself is still well-formed.
		t.Fatal("expected Validate to reject a partially built tree")
	}
	if got := tr.Root(); got != 6 {
		t.Errorf("root = %d, want 6", got)
	}
	kids := tr.Children(tr.Root())
	if len(kids) != 2 || kids[0] != 2 {
		t.Errorf("root children = %v, want [2 7]", kids)
	}
	if len(tr.Postorder()) != 4 {
		t.Errorf("partial tree has %d edges, want 4", len(tr.Postorder()))
	}
}

func TestNewTriple_BadInput(t *testing.T) {
	if _, err := NewTriple(1, 2, 3, 2); !errors.Is(err, ErrTooSmall) {
		t.Errorf("nTips=2: got %v, want ErrTooSmall", err)
	}
	if _, err := NewTriple(1, 1, 2, 4); !errors.Is(err, ErrBadNode) {
		t.Errorf("repeated tip: got %v, want ErrBadNode", err)
	}
	if _, err := NewTriple(1, 2, 9, 4); !errors.Is(err, ErrBadNode) {
		t.Errorf("tip out of range: got %v, want ErrBadNode", err)
	}
}

func TestFromEdges_Validation(t *testing.T) {
	tests := []struct {
		name  string
		root  int
		edges []Edge
		want  error
	}{
		{
			name: "tip with children",
			root: 5,
			edges: []Edge{
				{5, 1}, {5, 6}, {6, 2}, {6, 7}, {1, 3}, {1, 4},
			},
			want: ErrNotBinary,
		},
		{
			name: "two parents",
			root: 5,
			edges: []Edge{
				{5, 6}, {5, 7}, {6, 1}, {6, 2}, {7, 3}, {7, 1},
			},
			want: ErrNotBinary,
		},
		{
			name: "three children",
			root: 5,
			edges: []Edge{
				{5, 1}, {5, 2}, {5, 3}, {5, 6}, {6, 4}, {6, 7},
			},
			want: ErrNotBinary,
		},
		{
			name: "unreachable tip",
			root: 5,
			edges: []Edge{
				{5, 1}, {5, 6}, {6, 2}, {6, 3},
			},
			want: ErrBadNode,
		},
		{
			name:  "root is a tip",
			root:  2,
			edges: []Edge{{2, 1}, {2, 3}},
			want:  ErrBadNode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEdges(4, tt.root, tt.edges)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPostorder_ChildrenBeforeParents(t *testing.T) {
	tr := balanced4(t)
	edges := tr.Postorder()
	if len(edges) != 6 {
		t.Fatalf("got %d edges, want 6", len(edges))
	}
	done := map[int]bool{}
	for _, e := range edges {
		for _, c := range tr.Children(e.Child) {
			if !done[c] {
				t.Errorf("edge into %d emitted before child %d", e.Child, c)
			}
		}
		done[e.Child] = true
	}
}

func TestGraftPrune_Roundtrip(t *testing.T) {
	tr, err := FromEdges(5, 6, []Edge{
		{6, 7}, {6, 8},
		{7, 1}, {7, 2},
		{8, 3}, {8, 4},
	})
	if err == nil {
		t.Fatal("tip 5 unattached, expected FromEdges to fail")
	}

	tr, err = FromEdges(5, 6, []Edge{
		{6, 7}, {6, 8},
		{7, 1}, {7, 2},
		{8, 3}, {8, 9},
		{9, 4}, {9, 5},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	before := edgeSet(tr)

	splice, err := tr.Prune(5)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if err := tr.Validate(); err == nil {
		t.Fatal("tree with detached tip should not validate")
	}
	if _, err := tr.Graft(5, splice); err != nil {
		t.Fatalf("Graft: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate after roundtrip: %v", err)
	}

	after := edgeSet(tr)
	if len(after) != len(before) {
		t.Fatalf("edge count changed: %d -> %d", len(before), len(after))
	}
	for e := range before {
		if !after[e] {
			t.Errorf("edge %v lost in roundtrip", e)
		}
	}
}

func TestPrune_RootChild(t *testing.T) {
	tr := balanced4(t)

	splice, err := tr.Prune(6)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if splice != (Edge{0, 7}) {
		t.Errorf("splice = %v, want {0 7}", splice)
	}
	if tr.Root() != 7 {
		t.Errorf("root = %d, want 7 after pruning the other root child", tr.Root())
	}

	if _, err := tr.Regraft(6, splice); err != nil {
		t.Fatalf("Regraft above root: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tr.Root() == 7 {
		t.Error("regraft above root should have made a new root")
	}
}

func TestPrune_Degenerate(t *testing.T) {
	tr, err := NewTriple(1, 2, 3, 3)
	if err != nil {
		t.Fatalf("NewTriple: %v", err)
	}
	// The root's internal child has the lone tip 1 as sibling; pruning it
	// would leave a single-tip tree.
	internal := tr.Sibling(1)
	if _, err := tr.Prune(internal); !errors.Is(err, ErrDegeneratePrune) {
		t.Errorf("got %v, want ErrDegeneratePrune", err)
	}
}

func TestSwapEdge_Involution(t *testing.T) {
	tr := balanced4(t)
	before := edgeSet(tr)

	if err := tr.SwapEdge(2, 3); err != nil {
		t.Fatalf("SwapEdge: %v", err)
	}
	if tr.Parent(2) != 7 || tr.Parent(3) != 6 {
		t.Errorf("parents after swap: 2->%d 3->%d, want 7 and 6", tr.Parent(2), tr.Parent(3))
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate after swap: %v", err)
	}

	if err := tr.SwapEdge(2, 3); err != nil {
		t.Fatalf("SwapEdge back: %v", err)
	}
	after := edgeSet(tr)
	for e := range before {
		if !after[e] {
			t.Errorf("edge %v not restored by double swap", e)
		}
	}
}

func TestSwapEdge_RejectsSiblings(t *testing.T) {
	tr := balanced4(t)
	if err := tr.SwapEdge(1, 2); !errors.Is(err, ErrBadEdge) {
		t.Errorf("sibling swap: got %v, want ErrBadEdge", err)
	}
}

func TestReroot(t *testing.T) {
	tr := balanced4(t)
	if err := tr.Reroot(4); err != nil {
		t.Fatalf("Reroot: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate after reroot: %v", err)
	}
	if tr.Parent(4) != tr.Root() {
		t.Errorf("tip 4 should hang off the root, parent = %d", tr.Parent(4))
	}

	var tips []int
	for _, n := range tr.PostorderNodes() {
		if tr.IsTip(n) {
			tips = append(tips, n)
		}
	}
	sort.Ints(tips)
	for i, tip := range tips {
		if tip != i+1 {
			t.Fatalf("tips after reroot = %v, want 1..4", tips)
		}
	}
}

func TestReroot_NoopCases(t *testing.T) {
	tr := balanced4(t)
	before := edgeSet(tr)
	if err := tr.Reroot(tr.Root()); err != nil {
		t.Fatalf("Reroot(root): %v", err)
	}
	if err := tr.Reroot(6); err != nil {
		t.Fatalf("Reroot(root child): %v", err)
	}
	after := edgeSet(tr)
	for e := range before {
		if !after[e] {
			t.Errorf("no-op reroot changed edge %v", e)
		}
	}
}

package memory

// Tree fixtures shared by tests and benchmarks. A tree of depth d has
// 2^(d+1) - 1 nodes with treeFieldLength = 2; depth 0 is a single leaf.

const treeFieldLength = 2

func treeNodeCount(depth int) int64 {
	return (1 << (depth + 1)) - 1
}

func buildManualTree(rt *Runtime, depth int) ManualObject {
	node := rt.NewManualObject(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		node.SetObject(i, buildManualTree(rt, depth-1))
	}
	return node
}

func buildSingleThreadTree(rt *Runtime, depth int) SingleThreadRC {
	node := rt.NewSingleThreadRC(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		child := buildSingleThreadTree(rt, depth-1)
		node.SetObject(i, child)
		child.Drop()
	}
	return node
}

func buildThreadSafeTree(rt *Runtime, depth int) ThreadSafeRC {
	node := rt.NewThreadSafeRC(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		child := buildThreadSafeTree(rt, depth-1)
		node.SetObject(i, child)
		child.Drop()
	}
	return node
}

func buildDynamicTree(rt *Runtime, depth int) DynamicRC {
	node := rt.NewDynamicRC(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		child := buildDynamicTree(rt, depth-1)
		node.SetObject(i, child)
		child.Drop()
	}
	return node
}

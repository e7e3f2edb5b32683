package graph

// renderOrder returns the live nodes so that every node follows all of its
// parents (Kahn's algorithm). Creation order breaks ties. The result is
// cached until the topology changes.
func (s *Simulation) renderOrder() []*Node {
	if !s.orderDirty && s.order != nil {
		return s.order
	}
	index := make(map[*Node]int, len(s.nodes))
	for i, n := range s.nodes {
		index[n] = i
	}
	indegree := make([]int, len(s.nodes))
	children := make([][]int, len(s.nodes))
	for i, n := range s.nodes {
		for _, c := range n.inputs {
			if c.parent == nil {
				continue
			}
			p, ok := index[c.parent]
			if !ok {
				continue
			}
			children[p] = append(children[p], i)
			indegree[i]++
		}
	}

	queue := make([]int, 0, len(s.nodes))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]*Node, 0, len(s.nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, s.nodes[i])
		for _, c := range children[i] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(order) != len(s.nodes) {
		// SetParent rejects cycles, so this only happens if a node type
		// rewires itself; render the rest in creation order.
		s.logger.Warn("render graph contains a cycle", "ordered", len(order), "nodes", len(s.nodes))
		placed := make(map[*Node]bool, len(order))
		for _, n := range order {
			placed[n] = true
		}
		for _, n := range s.nodes {
			if !placed[n] {
				order = append(order, n)
			}
		}
	}
	s.order = order
	s.orderDirty = false
	return order
}

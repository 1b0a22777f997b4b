package sched

// Validate checks the currently submitted graph for dependency cycles
// before work is released. Production steps skip this pass: a cycle there
// starves silently and only shows up through Stalled.
func (m *Manager) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateLocked()
}

func (m *Manager) validateLocked() error {
	n := len(m.entries)
	if n == 0 {
		return nil
	}

	indegree := make([]int, n)
	adj := make([][]TaskID, n)
	for _, e := range m.entries {
		e.cmu.Lock()
		for _, c := range e.conts {
			adj[e.id] = append(adj[e.id], c.id)
			indegree[c.id]++
		}
		e.cmu.Unlock()
	}

	queue := make([]TaskID, 0, n)
	for i := range indegree {
		if indegree[i] == 0 {
			queue = append(queue, TaskID(i))
		}
	}
	seen := 0
	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		seen++
		for _, c := range adj[id] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	if seen == n {
		return nil
	}

	// Everything left over either sits on a cycle or behind one; all of it
	// would starve.
	stuck := &CycleError{}
	for i, d := range indegree {
		if d > 0 {
			stuck.Tasks = append(stuck.Tasks, displayName(m.entries[i]))
		}
	}
	return stuck
}

package graph

import "sort"

// Stats summarizes the shape of a graph
type Stats struct {
	Points     int     `json:"points"`
	Edges      int     `json:"edges"`
	Components int     `json:"components"`
	Connected  bool    `json:"connected"`
	AvgDegree  float64 `json:"avgDegree"`
}

// Stats computes point, edge and component counts and the average degree
func (g *Graph) Stats() Stats {
	s := Stats{
		Points:     len(g.ids),
		Edges:      len(g.edges),
		Components: len(g.Components()),
	}
	s.Connected = s.Components == 1
	if s.Points > 0 {
		s.AvgDegree = 2 * float64(s.Edges) / float64(s.Points)
	}
	return s
}

// Components returns the connected components, each sorted by id and ordered
// by their smallest id
func (g *Graph) Components() [][]string {
	seen := make(map[string]bool, len(g.ids))
	var comps [][]string

	for _, root := range g.ids {
		if seen[root] {
			continue
		}
		seen[root] = true
		comp := []string{root}
		// comp doubles as the BFS queue
		for i := 0; i < len(comp); i++ {
			for _, n := range g.adj[comp[i]] {
				if !seen[n.ID] {
					seen[n.ID] = true
					comp = append(comp, n.ID)
				}
			}
		}
		sort.Strings(comp)
		comps = append(comps, comp)
	}
	return comps
}

// Connected reports whether a and b lie in the same component
func (g *Graph) Connected(a, b string) bool {
	if !g.HasPoint(a) || !g.HasPoint(b) {
		return false
	}
	seen := map[string]bool{a: true}
	queue := []string{a}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == b {
			return true
		}
		for _, n := range g.adj[id] {
			if !seen[n.ID] {
				seen[n.ID] = true
				queue = append(queue, n.ID)
			}
		}
	}
	return false
}

package hnsw

// Stats describe the shape of a built graph.
type Stats struct {
	// Nodes is the total number of vectors in the graph.
	Nodes int `json:"nodes"`

	// TopLevel is the highest level any node reached.
	TopLevel int `json:"topLevel"`

	// EntryPoint is the id of the node where searches start.
	EntryPoint string `json:"entryPoint"`

	// LevelCounts holds the number of nodes per level, base layer first.
	LevelCounts []int `json:"levelCounts"`

	// AvgBaseDegree is the mean neighbor count on the base layer.
	AvgBaseDegree float64 `json:"avgBaseDegree"`
}

// Stats reports structural statistics for the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{
		Nodes:    len(g.nodes),
		TopLevel: g.topLevel,
	}

	if len(g.nodes) == 0 {
		return stats
	}

	stats.EntryPoint = g.nodes[g.entryPoint].id
	stats.LevelCounts = make([]int, g.topLevel+1)

	edges := 0

	for _, n := range g.nodes {
		for l := 0; l <= n.level; l++ {
			stats.LevelCounts[l]++
		}

		edges += len(n.connections[0])
	}

	stats.AvgBaseDegree = float64(edges) / float64(len(g.nodes))

	return stats
}

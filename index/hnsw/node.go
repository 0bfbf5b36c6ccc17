package hnsw

// node is a single graph vertex. connections holds one neighbor list per
// level from 0 up to the node's own level.
type node struct {
	id          string
	vector      []float32
	level       int
	connections [][]uint32
}

// Package hnsw implements a hierarchical navigable small world proximity
// graph for approximate nearest neighbor search. A graph is built once from
// a snapshot of vectors and is immutable afterwards, so any number of
// goroutines may search it concurrently without locking.
package hnsw

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/proximadb/proxima/distance"
	"github.com/proximadb/proxima/internal/queue"
)

const (
	// DefaultM is the default maximum number of connections per node on
	// layers above the base layer. The base layer allows twice as many.
	DefaultM = 16

	// DefaultEFConstruction is the default size of the candidate pool used
	// while wiring a new node into the graph.
	DefaultEFConstruction = 200

	// DefaultEF is the default size of the candidate pool used during
	// search when the caller does not provide one.
	DefaultEF = 50

	// maxLevel caps the level drawn for any node.
	maxLevel = 16
)

// Options configure graph construction.
type Options struct {
	// M caps the number of connections per node on layers above the base
	// layer. The base layer cap is 2*M.
	M int

	// EFConstruction is the candidate pool size used when inserting nodes.
	// Larger values produce a better connected graph at higher build cost.
	EFConstruction int

	// RandomSeed, when non-nil, seeds the level generator so builds are
	// reproducible. When nil the generator is seeded from the clock.
	RandomSeed *int64
}

// DefaultOptions are the construction defaults.
var DefaultOptions = Options{
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
}

// WithM sets the connection cap for layers above the base layer.
func WithM(m int) func(*Options) {
	return func(o *Options) {
		o.M = m
	}
}

// WithEFConstruction sets the candidate pool size used during construction.
func WithEFConstruction(ef int) func(*Options) {
	return func(o *Options) {
		o.EFConstruction = ef
	}
}

// WithRandomSeed makes the level draw deterministic.
func WithRandomSeed(seed int64) func(*Options) {
	return func(o *Options) {
		o.RandomSeed = &seed
	}
}

// Entry is a single vector handed to Build.
type Entry struct {
	ID     string
	Vector []float32
}

// Result is a single search hit.
type Result struct {
	ID       string
	Distance float32
}

// ErrDimensionMismatch is returned when a vector's length does not match
// the dimension the graph was built for.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Graph is an immutable proximity graph over a fixed set of vectors.
type Graph struct {
	dimension      int
	distanceFunc   distance.Func
	mmax           int
	mmax0          int
	efConstruction int

	entryPoint uint32
	topLevel   int
	nodes      []*node

	rng *rand.Rand
}

// Build constructs a graph over entries, inserting them in order. All
// vectors must have the given dimension.
func Build(dimension int, fn distance.Func, entries []Entry, optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions

	for _, optFn := range optFns {
		optFn(&opts)
	}

	if opts.M < 2 {
		return nil, fmt.Errorf("hnsw: m must be at least 2, got %d", opts.M)
	}

	if opts.EFConstruction < 1 {
		return nil, fmt.Errorf("hnsw: efConstruction must be positive, got %d", opts.EFConstruction)
	}

	seed := time.Now().UnixNano()
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	}

	g := &Graph{
		dimension:      dimension,
		distanceFunc:   fn,
		mmax:           opts.M,
		mmax0:          opts.M * 2,
		efConstruction: opts.EFConstruction,
		nodes:          make([]*node, 0, len(entries)),
		rng:            rand.New(rand.NewSource(seed)),
	}

	for _, e := range entries {
		if len(e.Vector) != dimension {
			return nil, &ErrDimensionMismatch{Expected: dimension, Actual: len(e.Vector)}
		}

		g.insert(e)
	}

	return g, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Dimension returns the vector dimension the graph was built for.
func (g *Graph) Dimension() int {
	return g.dimension
}

// Search returns up to k nodes closest to query, sorted by ascending
// distance. ef bounds the candidate pool on the base layer and is raised
// to k when smaller.
func (g *Graph) Search(query []float32, k, ef int) ([]Result, error) {
	if len(query) != g.dimension {
		return nil, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(query)}
	}

	if k < 1 {
		return nil, fmt.Errorf("hnsw: k must be positive, got %d", k)
	}

	if len(g.nodes) == 0 {
		return nil, nil
	}

	if ef < k {
		ef = k
	}

	curr := g.entryPoint
	currDist := g.distanceFunc(query, g.nodes[curr].vector)

	for level := g.topLevel; level > 0; level-- {
		curr, currDist = g.greedyStep(query, curr, currDist, level)
	}

	found := g.searchLayer(query, curr, currDist, 0, ef)

	for found.Len() > k {
		found.PopItem()
	}

	results := make([]Result, found.Len())

	for i := found.Len() - 1; i >= 0; i-- {
		item, _ := found.PopItem()
		results[i] = Result{ID: g.nodes[item.Node].id, Distance: item.Distance}
	}

	return results, nil
}

func (g *Graph) insert(e Entry) {
	level := g.randomLevel()

	vec := make([]float32, len(e.Vector))
	copy(vec, e.Vector)

	n := &node{
		id:          e.ID,
		vector:      vec,
		level:       level,
		connections: make([][]uint32, level+1),
	}

	id := uint32(len(g.nodes))

	if len(g.nodes) == 0 {
		g.nodes = append(g.nodes, n)
		g.entryPoint = id
		g.topLevel = level

		return
	}

	curr := g.entryPoint
	currDist := g.distanceFunc(vec, g.nodes[curr].vector)

	for l := g.topLevel; l > level; l-- {
		curr, currDist = g.greedyStep(vec, curr, currDist, l)
	}

	top := level
	if g.topLevel < top {
		top = g.topLevel
	}

	for l := top; l >= 0; l-- {
		found := g.searchLayer(vec, curr, currDist, l, g.efConstruction)

		if best, ok := found.MinItem(); ok {
			curr, currDist = best.Node, best.Distance
		}

		n.connections[l] = g.selectNearest(found, g.capAt(l))
	}

	g.nodes = append(g.nodes, n)

	for l := top; l >= 0; l-- {
		for _, neighbor := range n.connections[l] {
			g.link(neighbor, id, l)
		}
	}

	if level > g.topLevel {
		g.topLevel = level
		g.entryPoint = id
	}
}

// greedyStep descends within a level, hopping to the closest neighbor
// until no neighbor improves on the current distance.
func (g *Graph) greedyStep(query []float32, curr uint32, currDist float32, level int) (uint32, float32) {
	for {
		improved := false

		for _, neighbor := range g.neighbors(curr, level) {
			if d := g.distanceFunc(query, g.nodes[neighbor].vector); d < currDist {
				curr, currDist = neighbor, d
				improved = true
			}
		}

		if !improved {
			return curr, currDist
		}
	}
}

// searchLayer runs a best-first expansion within a single level. The
// returned max-heap holds up to ef closest nodes seen.
func (g *Graph) searchLayer(query []float32, ep uint32, epDist float32, level, ef int) *queue.PriorityQueue {
	visited := bitset.New(uint(len(g.nodes)))
	visited.Set(uint(ep))

	candidates := queue.NewMin(ef)
	candidates.PushItem(queue.Item{Node: ep, Distance: epDist})

	found := queue.NewMax(ef)
	found.PushItem(queue.Item{Node: ep, Distance: epDist})

	for candidates.Len() > 0 {
		curr, _ := candidates.PopItem()

		if worst, ok := found.TopItem(); ok && found.Len() >= ef && curr.Distance > worst.Distance {
			break
		}

		for _, neighbor := range g.neighbors(curr.Node, level) {
			if visited.Test(uint(neighbor)) {
				continue
			}

			visited.Set(uint(neighbor))

			d := g.distanceFunc(query, g.nodes[neighbor].vector)

			if found.PushBounded(queue.Item{Node: neighbor, Distance: d}, ef) {
				candidates.PushItem(queue.Item{Node: neighbor, Distance: d})
			}
		}
	}

	return found
}

// selectNearest drains the max-heap into at most m node ids, closest first.
func (g *Graph) selectNearest(found *queue.PriorityQueue, m int) []uint32 {
	for found.Len() > m {
		found.PopItem()
	}

	selected := make([]uint32, found.Len())

	for i := found.Len() - 1; i >= 0; i-- {
		item, _ := found.PopItem()
		selected[i] = item.Node
	}

	return selected
}

// link adds target to source's neighbor list at level, shrinking the list
// back to the closest cap entries when it overflows.
func (g *Graph) link(source, target uint32, level int) {
	n := g.nodes[source]
	n.connections[level] = append(n.connections[level], target)

	limit := g.capAt(level)
	if len(n.connections[level]) <= limit {
		return
	}

	closest := queue.NewMax(limit)

	for _, neighbor := range n.connections[level] {
		d := g.distanceFunc(n.vector, g.nodes[neighbor].vector)
		closest.PushBounded(queue.Item{Node: neighbor, Distance: d}, limit)
	}

	n.connections[level] = g.selectNearest(closest, limit)
}

func (g *Graph) neighbors(id uint32, level int) []uint32 {
	n := g.nodes[id]
	if level > n.level {
		return nil
	}

	return n.connections[level]
}

func (g *Graph) capAt(level int) int {
	if level == 0 {
		return g.mmax0
	}

	return g.mmax
}

// randomLevel draws a node level by counting fair coin flips, capped so a
// pathological streak cannot produce an unbounded tower.
func (g *Graph) randomLevel() int {
	level := 0

	for level < maxLevel && g.rng.Float64() < 0.5 {
		level++
	}

	return level
}

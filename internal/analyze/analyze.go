// Package analyze computes scalar structural metrics over a web graph
// and simulates targeted node-removal attacks. The per-node metrics skip
// nodes tagged MarkedAsDeleted, so a simulated attack changes them
// without changing the graph structure. LinksIndex and the EdgesIndex
// denominator use the graph's total node and link counts, tagged nodes
// included.
package analyze

import (
	"errors"
	"math/rand/v2"

	"github.com/skoparov/webgraphbuilder/internal/webgraph"
)

// ErrInvalidChance is returned by SimulateNodesDeletion for a chance
// outside [0, 1].
var ErrInvalidChance = errors.New("chance should be within [0, 1]")

// Result aggregates all metrics over a graph.
type Result struct {
	EdgesIndex      float64
	LinksIndex      float64
	ClusteringCoeff float64
	Inductors       int
	Collectors      int
	Mediators       int
}

// Analyze computes every metric over the graph.
func Analyze(g *webgraph.Graph) Result {
	result := Result{
		EdgesIndex:      EdgesIndex(g),
		LinksIndex:      LinksIndex(g),
		ClusteringCoeff: ClusteringCoeff(g),
	}
	result.Inductors, result.Collectors, result.Mediators = NodeTypes(g)

	return result
}

// EdgesIndex is the share of nodes participating in information
// interaction: non-deleted nodes with at least one inbound or outbound
// link, divided by the total node count (deleted nodes included in the
// denominator).
func EdgesIndex(g *webgraph.Graph) float64 {
	total := g.NodesNum()
	if total == 0 {
		return 0
	}

	connected := 0
	for _, node := range g.Nodes() {
		if node.Deleted() {
			continue
		}
		if len(node.Inbound()) > 0 || len(node.Outbound()) > 0 {
			connected++
		}
	}

	return float64(connected) / float64(total)
}

// LinksIndex is the net density of the graph: total links over
// N * (N - 1) possible links.
func LinksIndex(g *webgraph.Graph) float64 {
	return linksIndex(g.LinksNum(), g.NodesNum())
}

func linksIndex(linksNum, nodesNum int) float64 {
	if nodesNum <= 1 {
		return 0
	}
	return float64(linksNum) / float64(nodesNum*(nodesNum-1))
}

// localLinkIndex is the link index of the proximity subgraph made of
// the node and its adjacent nodes: the sum of parallel-link counts over
// the node's edges, against the subgraph's possible links. Neighbor
// count is the raw sum of inbound and outbound entries plus one.
func localLinkIndex(node *webgraph.Node) float64 {
	subgraphNodes := len(node.Inbound()) + len(node.Outbound()) + 1

	subgraphLinks := 0
	for _, num := range node.Inbound() {
		subgraphLinks += num
	}
	for _, num := range node.Outbound() {
		subgraphLinks += num
	}

	return linksIndex(subgraphLinks, subgraphNodes)
}

// ClusteringCoeff measures the coherence of the graph: the mean local
// link index over non-deleted nodes with total degree of at least two,
// or 0 when no node qualifies.
func ClusteringCoeff(g *webgraph.Graph) float64 {
	qualifying := 0
	sum := 0.0

	for _, node := range g.Nodes() {
		if node.Deleted() {
			continue
		}
		if len(node.Inbound())+len(node.Outbound()) >= 2 {
			qualifying++
			sum += localLinkIndex(node)
		}
	}

	if qualifying == 0 {
		return 0
	}
	return sum / float64(qualifying)
}

// NodeTypes classifies every non-deleted node by its weighted inbound
// and outbound link counts and returns the class sizes. A node is an
// inductor when its outbound weight is at least 1.5x its inbound
// weight, a collector in the mirrored case, and a mediator otherwise.
func NodeTypes(g *webgraph.Graph) (inductors, collectors, mediators int) {
	for _, node := range g.Nodes() {
		if node.Deleted() {
			continue
		}

		inbound := weightedLinksNum(node.Inbound())
		outbound := weightedLinksNum(node.Outbound())

		switch {
		case float64(inbound)*1.5 <= float64(outbound):
			inductors++
		case float64(outbound)*1.5 <= float64(inbound):
			collectors++
		default:
			mediators++
		}
	}

	return inductors, collectors, mediators
}

func weightedLinksNum(links map[*webgraph.Node]int) int {
	total := 0
	for _, num := range links {
		total += num
	}
	return total
}

// SimulateNodesDeletion draws each node independently: drawn nodes gain
// the MarkedAsDeleted tag, nodes not drawn lose it. The draw is true
// with the given probability; 1 tags every node deterministically and 0
// leaves all tags untouched.
func SimulateNodesDeletion(g *webgraph.Graph, chance float64) error {
	if chance < 0 || chance > 1 {
		return ErrInvalidChance
	}

	if chance == 0 {
		return nil
	}

	for _, node := range g.Nodes() {
		if shouldBeDeleted(chance) {
			if !node.Deleted() {
				node.AddTag(webgraph.MarkedAsDeleted)
			}
		} else if node.Deleted() {
			node.DeleteTag(webgraph.MarkedAsDeleted)
		}
	}

	return nil
}

func shouldBeDeleted(chance float64) bool {
	if chance == 1 {
		return true
	}
	return rand.Float64() < chance
}

// Package webgraph implements the directed multigraph of hyperlinks
// between the pages of a single website. Nodes are keyed by canonical
// URL; a pair of pages may be connected by any number of parallel links,
// tracked as an integer count on a single edge entry.
//
// The graph's internals are reachable only through the methods below, so
// every mutation keeps the structural invariants: for any pair (u, v)
// u.Outbound()[v] == v.Inbound()[u], and the total link counter equals
// the sum of all outbound counts.
package webgraph

import (
	"github.com/skoparov/webgraphbuilder/internal/urlnorm"
)

// TagID identifies a boolean tag on a node. The meaning of each value is
// assigned by higher layers.
type TagID uint32

// MarkedAsDeleted flags a node as logically deleted: it stays in the
// graph with all edges intact but is skipped by analyzers and
// serializers. Removing the tag restores the node.
const MarkedAsDeleted TagID = 0

// Node is a single web page. It retains the URL form it was first
// encountered under, which may differ from its canonical key.
type Node struct {
	url      string
	inbound  map[*Node]int
	outbound map[*Node]int
	tags     map[TagID]struct{}
}

func newNode(url string) *Node {
	return &Node{
		url:      url,
		inbound:  make(map[*Node]int),
		outbound: make(map[*Node]int),
		tags:     make(map[TagID]struct{}),
	}
}

// URL returns the node's original URL string.
func (n *Node) URL() string {
	return n.url
}

// Inbound returns the node's inbound neighbors with their parallel-link
// counts. The returned map is the live edge map; callers must not
// modify it.
func (n *Node) Inbound() map[*Node]int {
	return n.inbound
}

// Outbound returns the node's outbound neighbors with their
// parallel-link counts. The returned map is the live edge map; callers
// must not modify it.
func (n *Node) Outbound() map[*Node]int {
	return n.outbound
}

// AddTag sets a tag on the node. Setting a tag twice is a no-op.
func (n *Node) AddTag(tag TagID) {
	n.tags[tag] = struct{}{}
}

// DeleteTag clears a tag from the node.
func (n *Node) DeleteTag(tag TagID) {
	delete(n.tags, tag)
}

// HasTag reports whether the tag is set on the node.
func (n *Node) HasTag(tag TagID) bool {
	_, ok := n.tags[tag]
	return ok
}

// Deleted reports whether the node carries the MarkedAsDeleted tag.
func (n *Node) Deleted() bool {
	return n.HasTag(MarkedAsDeleted)
}

// Graph is the directed multigraph. The zero value is not usable;
// construct with New or NewWithRoot.
type Graph struct {
	root  *Node
	nodes map[string]*Node
	links int
}

// New creates an empty graph. The first node added becomes the root.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// NewWithRoot creates a graph seeded with a single root node.
func NewWithRoot(rootURL string) *Graph {
	g := New()
	g.AddNode(rootURL)
	return g
}

// AddNode inserts a node for the URL and returns it. If a node with the
// same canonical key already exists it is returned unchanged. The root
// is set only when the graph was previously empty.
func (g *Graph) AddNode(url string) *Node {
	key := urlnorm.Canonicalize(url)
	if node, ok := g.nodes[key]; ok {
		return node
	}

	node := newNode(url)
	if len(g.nodes) == 0 {
		g.root = node
	}
	g.nodes[key] = node

	return node
}

// Root returns the root node, or nil for an empty graph.
func (g *Graph) Root() *Node {
	return g.root
}

// GetNode returns the node whose canonical key matches the URL, or nil.
// As a special case the root also matches on its original URL string,
// so root retrieval works even when the stored form differs from the
// canonical key.
func (g *Graph) GetNode(url string) *Node {
	if g.root != nil && g.root.url == url {
		return g.root
	}
	return g.nodes[urlnorm.Canonicalize(url)]
}

// Nodes returns the canonical-key map of all nodes, including nodes
// tagged MarkedAsDeleted. The returned map is the live key map; callers
// must not modify it.
func (g *Graph) Nodes() map[string]*Node {
	return g.nodes
}

// NodesNum returns the total node count, including tagged nodes.
func (g *Graph) NodesNum() int {
	return len(g.nodes)
}

// LinksNum returns the total link count: the sum of parallel-link
// counts over all edges.
func (g *Graph) LinksNum() int {
	return g.links
}

// AddLink records a link from the given node to the page at toURL,
// inserting a node for it if absent, and returns the target node.
// Repeated calls for the same pair accumulate parallel links.
func (g *Graph) AddLink(toURL string, from *Node) *Node {
	to := g.GetNode(toURL)
	if to == nil {
		to = g.AddNode(toURL)
	}

	return g.Link(to, from)
}

// Link records a link between two nodes already in the graph and
// returns the target node.
func (g *Graph) Link(to, from *Node) *Node {
	to.inbound[from]++
	from.outbound[to]++
	g.links++

	return to
}

// DeleteNode removes a node structurally: every other node's edge maps
// are scrubbed of references to it, the total link counter drops by the
// number of links removed, and the node leaves the key map. Deleting
// the root rebinds the root to an arbitrary outbound neighbor, or to
// nil if none exists.
func (g *Graph) DeleteNode(node *Node) {
	for _, other := range g.nodes {
		if other != node {
			delete(other.inbound, node)
			delete(other.outbound, node)
		}
	}

	removed := 0
	for _, num := range node.inbound {
		removed += num
	}
	for _, num := range node.outbound {
		removed += num
	}
	// A self-link shows up in both maps but was counted once.
	removed -= node.outbound[node]
	g.links -= removed

	if node == g.root {
		g.root = nil
		for neighbor := range node.outbound {
			if neighbor != node {
				g.root = neighbor
				break
			}
		}
	}

	delete(g.nodes, urlnorm.Canonicalize(node.url))
}

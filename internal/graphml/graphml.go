// Package graphml persists web graphs in the GraphML XML format and
// reads back files in the emitted shape. Node ids are original URL
// strings; a parallel link of count n is written as n identical edge
// elements. Nodes tagged MarkedAsDeleted are omitted, together with
// every edge touching them.
//
// The reader is intentionally narrow: it round-trips files produced by
// Serialize and does not aim to accept arbitrary GraphML.
package graphml

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/skoparov/webgraphbuilder/internal/webgraph"
)

// ErrCorrupted reports a GraphML file that cannot describe a graph:
// an edge referencing an unknown node, or edges with no preceding node.
var ErrCorrupted = errors.New("corrupted graphml")

var (
	nodePattern = regexp.MustCompile(`<node id="(\S+)"/>`)
	edgePattern = regexp.MustCompile(`<edge source="(\S+)" target="(\S+)"/>`)
)

// Serialize writes the graph to path as GraphML. All node elements
// precede all edge elements; emission follows the graph's node
// iteration order.
func Serialize(g *webgraph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}

	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(w, "<graphml xmlns=\"http://graphml.graphdrawing.org/xmlns\">\n")
	fmt.Fprintf(w, "    <graph id=\"WebSiteGraph\" edgedefault=\"directed\">\n")

	for _, node := range g.Nodes() {
		if !node.Deleted() {
			fmt.Fprintf(w, "        <node id=\"%s\"/>\n", node.URL())
		}
	}

	for _, node := range g.Nodes() {
		if node.Deleted() {
			continue
		}
		for target, num := range node.Outbound() {
			if target.Deleted() {
				continue
			}
			for i := 0; i < num; i++ {
				fmt.Fprintf(w, "        <edge source=\"%s\" target=\"%s\"/>\n",
					node.URL(), target.URL())
			}
		}
	}

	fmt.Fprintf(w, "    </graph>\n")
	fmt.Fprintf(w, "</graphml>")

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write graph file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close graph file: %w", err)
	}

	return nil
}

// Deserialize reads a GraphML file produced by Serialize. The first
// node element seeds the graph and becomes its root. Once the first
// edge element is seen, subsequent node elements are ignored.
func Deserialize(path string) (*webgraph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var graph *webgraph.Graph
	edgesStarted := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if !edgesStarted {
			if match := nodePattern.FindStringSubmatch(line); match != nil {
				if graph == nil {
					graph = webgraph.NewWithRoot(match[1])
				} else {
					graph.AddNode(match[1])
				}
				continue
			}
		}

		match := edgePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		if graph == nil {
			return nil, fmt.Errorf("%w: edges found but no nodes added", ErrCorrupted)
		}
		edgesStarted = true

		from := graph.GetNode(match[1])
		if from == nil {
			return nil, fmt.Errorf("%w: source node %q not found", ErrCorrupted, match[1])
		}
		to := graph.GetNode(match[2])
		if to == nil {
			return nil, fmt.Errorf("%w: target node %q not found", ErrCorrupted, match[2])
		}

		graph.Link(to, from)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	if graph == nil {
		return nil, fmt.Errorf("%w: no nodes found", ErrCorrupted)
	}

	return graph, nil
}

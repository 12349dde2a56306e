// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package pocket

import (
	"fmt"

	"github.com/scicloj/pocket-go/keying"
)

// GraphNode is one entry in an OriginStory traversal: either a Cached
// handle (FnName/ID/Fingerprint populated, Args pointing at its own
// recipe edges) or a leaf literal (Literal populated, everything else
// zero).
type GraphNode struct {
	FnName      string
	ID          string
	Fingerprint string
	Args        []*GraphNode
	IsLiteral   bool
	Literal     any
}

// String renders a node for diagnostic dumps; a DOT/mermaid rendering
// is a presentation concern layered on top, per spec.md §4.8.
func (n *GraphNode) String() string {
	if n.IsLiteral {
		return fmt.Sprintf("literal(%v)", n.Literal)
	}
	return fmt.Sprintf("%s@%s", n.FnName, n.Fingerprint[:8])
}

// Graph is the transitive recipe rooted at one Cached handle.
type Graph struct {
	Root  *GraphNode
	Nodes []*GraphNode // every distinct Cached handle reachable, root included, each once
}

// OriginStory describes h's transitive dependency graph without
// forcing any node. Non-handle arguments are rendered as leaf
// literals. A handle reachable through more than one path is visited
// once; a cycle (unreachable through the public API, but guarded
// anyway) renders its repeat as a back-edge rather than recursing
// forever.
func OriginStory(h *Cached) *Graph {
	visited := make(map[*Cached]*GraphNode)
	var nodes []*GraphNode
	var walk func(c *Cached) *GraphNode
	walk = func(c *Cached) *GraphNode {
		if n, ok := visited[c]; ok {
			return n
		}
		n := &GraphNode{
			FnName:      c.fnName,
			ID:          keying.Canonicalize(c.sig),
			Fingerprint: c.fp.String(),
		}
		visited[c] = n
		nodes = append(nodes, n)
		for _, a := range c.args {
			if ah, ok := a.(*Cached); ok {
				n.Args = append(n.Args, walk(ah))
			} else {
				n.Args = append(n.Args, &GraphNode{IsLiteral: true, Literal: a})
			}
		}
		return n
	}
	root := walk(h)
	return &Graph{Root: root, Nodes: nodes}
}

// NodeCount reports how many distinct Cached handles are reachable
// from g's root, the testable property spec.md §8 property 10 checks
// against "reachable Cached handles without forcing any of them".
func (g *Graph) NodeCount() int { return len(g.Nodes) }

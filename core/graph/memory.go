package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// Collaboration counts the papers an author shares with another author.
type Collaboration struct {
	Name   string `json:"name"`
	Papers int    `json:"papers"`
}

// KeywordCount counts the papers a keyword shares with another keyword.
type KeywordCount struct {
	Term   string `json:"term"`
	Papers int    `json:"papers"`
}

// MemoryGraph is an immutable paper, author and keyword graph.
type MemoryGraph struct {
	nodes map[model.NodeID]*model.Node
	order []model.NodeID
	out   map[model.NodeID][]*model.Edge
	in    map[model.NodeID][]*model.Edge
}

// Build derives the graph from paper metadata. Authors and keywords are
// merged case-insensitively, the first spelling is kept as label.
func Build(papers []*model.Paper) *MemoryGraph {
	g := &MemoryGraph{
		nodes: map[model.NodeID]*model.Node{},
		out:   map[model.NodeID][]*model.Edge{},
		in:    map[model.NodeID][]*model.Edge{},
	}

	for _, paper := range papers {
		if paper == nil || paper.ID == "" {
			continue
		}
		paperID := g.add(model.NewPaperNode(model.PaperNode{ID: paper.ID, Title: paper.Title, Year: paper.Year()}))

		for _, author := range paper.Authors {
			if strings.TrimSpace(author) == "" {
				continue
			}
			g.link(paperID, g.add(model.NewAuthorNode(strings.TrimSpace(author))), model.EdgeAuthoredBy)
		}
		for _, keyword := range paper.Keywords {
			if strings.TrimSpace(keyword) == "" {
				continue
			}
			g.link(paperID, g.add(model.NewKeywordNode(strings.TrimSpace(keyword))), model.EdgeMentions)
		}
	}

	return g
}

func (g *MemoryGraph) add(node *model.Node) model.NodeID {
	id := node.ID()
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = node
		g.order = append(g.order, id)
	}
	return id
}

func (g *MemoryGraph) link(from model.NodeID, to model.NodeID, kind model.EdgeKind) {
	for _, edge := range g.out[from] {
		if edge.To == to && edge.Kind == kind {
			return
		}
	}
	edge := &model.Edge{From: from, To: to, Kind: kind}
	g.out[from] = append(g.out[from], edge)
	g.in[to] = append(g.in[to], edge)
}

// Len returns the number of nodes.
func (g *MemoryGraph) Len() int {
	return len(g.nodes)
}

// Nodes returns every node in insertion order.
func (g *MemoryGraph) Nodes() []*model.Node {
	nodes := make([]*model.Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Node looks up a node, the key is normalized for authors and keywords.
func (g *MemoryGraph) Node(kind model.NodeKind, key string) (*model.Node, bool) {
	node, ok := g.nodes[nodeID(kind, key)]
	return node, ok
}

// Neighbors returns the nodes one edge away.
func (g *MemoryGraph) Neighbors(ctx context.Context, id model.NodeID) ([]*model.Node, error) {
	return GetNeighbors(ctx, g, id, nil)
}

// GetNode implements GraphDB.
func (g *MemoryGraph) GetNode(ctx context.Context, id model.NodeID) (*model.Node, error) {
	node, ok := g.nodes[id]
	if !ok {
		return nil, helper.NewError("get node", helper.Wrap(helper.ErrNotFound, "node %s", id))
	}
	return node, nil
}

// GetEdges implements GraphDB. It returns the outgoing and incoming edges of id.
func (g *MemoryGraph) GetEdges(ctx context.Context, id model.NodeID, edgeKinds []model.EdgeKind) ([]*model.Edge, error) {
	var edges []*model.Edge
	for _, list := range [][]*model.Edge{g.out[id], g.in[id]} {
		for _, edge := range list {
			if matchesKind(edge.Kind, edgeKinds) {
				edges = append(edges, edge)
			}
		}
	}
	return edges, nil
}

// PapersByAuthor lists the papers of an author, newest first.
func (g *MemoryGraph) PapersByAuthor(author string, limit int) []model.PaperNode {
	return g.papersOf(nodeID(model.NodeKindAuthor, author), limit)
}

// PapersByKeyword lists the papers mentioning a keyword, newest first.
func (g *MemoryGraph) PapersByKeyword(keyword string, limit int) []model.PaperNode {
	return g.papersOf(nodeID(model.NodeKindKeyword, keyword), limit)
}

// Coauthors counts the shared papers per coauthor, most frequent first.
func (g *MemoryGraph) Coauthors(author string, limit int) []Collaboration {
	id := nodeID(model.NodeKindAuthor, author)
	counts := g.cooccurring(id, model.EdgeAuthoredBy)

	collaborations := make([]Collaboration, 0, len(counts))
	for other, n := range counts {
		collaborations = append(collaborations, Collaboration{Name: g.nodes[other].Label(), Papers: n})
	}
	sort.Slice(collaborations, func(i, j int) bool {
		if collaborations[i].Papers != collaborations[j].Papers {
			return collaborations[i].Papers > collaborations[j].Papers
		}
		return collaborations[i].Name < collaborations[j].Name
	})
	return truncate(collaborations, limit)
}

// RelatedKeywords counts the papers a keyword shares with other keywords.
func (g *MemoryGraph) RelatedKeywords(keyword string, limit int) []KeywordCount {
	id := nodeID(model.NodeKindKeyword, keyword)
	counts := g.cooccurring(id, model.EdgeMentions)

	related := make([]KeywordCount, 0, len(counts))
	for other, n := range counts {
		related = append(related, KeywordCount{Term: g.nodes[other].Label(), Papers: n})
	}
	sort.Slice(related, func(i, j int) bool {
		if related[i].Papers != related[j].Papers {
			return related[i].Papers > related[j].Papers
		}
		return related[i].Term < related[j].Term
	})
	return truncate(related, limit)
}

func (g *MemoryGraph) papersOf(id model.NodeID, limit int) []model.PaperNode {
	papers := []model.PaperNode{}
	for _, edge := range g.in[id] {
		papers = append(papers, *g.nodes[edge.From].Paper)
	}
	sort.Slice(papers, func(i, j int) bool {
		if papers[i].Year != papers[j].Year {
			return papers[i].Year > papers[j].Year
		}
		return papers[i].ID < papers[j].ID
	})
	return truncate(papers, limit)
}

// cooccurring counts the nodes linked by kind to the same papers as id.
func (g *MemoryGraph) cooccurring(id model.NodeID, kind model.EdgeKind) map[model.NodeID]int {
	counts := map[model.NodeID]int{}
	for _, edge := range g.in[id] {
		for _, sibling := range g.out[edge.From] {
			if sibling.Kind == kind && sibling.To != id {
				counts[sibling.To]++
			}
		}
	}
	return counts
}

func nodeID(kind model.NodeKind, key string) model.NodeID {
	if kind == model.NodeKindPaper {
		return model.NodeID{Kind: kind, Key: key}
	}
	return model.NodeID{Kind: kind, Key: model.NormalizeKey(key)}
}

func matchesKind(kind model.EdgeKind, edgeKinds []model.EdgeKind) bool {
	if len(edgeKinds) == 0 {
		return true
	}
	for _, k := range edgeKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

package graph

import (
	"context"

	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// GraphDB defines the interface for graph operations
type GraphDB interface {
	GetNode(ctx context.Context, id model.NodeID) (*model.Node, error)
	GetEdges(ctx context.Context, id model.NodeID, edgeKinds []model.EdgeKind) ([]*model.Edge, error)
}

// TraversalResult contains a node and its distance from the source
type TraversalResult struct {
	Node     *model.Node
	Distance int
	Path     []model.NodeID // Path from source to this node
}

// BFS performs breadth-first search from a source node.
// An empty edgeKinds follows every kind of edge.
func BFS(ctx context.Context, db GraphDB, sourceID model.NodeID, maxHops int, edgeKinds []model.EdgeKind) ([]*TraversalResult, error) {
	sourceNode, err := db.GetNode(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	visited := map[model.NodeID]bool{sourceID: true}
	queue := []TraversalResult{{
		Node:     sourceNode,
		Distance: 0,
		Path:     []model.NodeID{sourceID},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]
		results = append(results, &current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		targets, err := expand(ctx, db, current.Node, edgeKinds)
		if err != nil {
			return nil, err
		}

		for _, targetID := range targets {
			if visited[targetID] {
				continue
			}

			targetNode, err := db.GetNode(ctx, targetID)
			if err != nil {
				continue // Skip dangling edges
			}
			visited[targetID] = true

			newPath := make([]model.NodeID, len(current.Path), len(current.Path)+1)
			copy(newPath, current.Path)
			newPath = append(newPath, targetID)

			queue = append(queue, TraversalResult{
				Node:     targetNode,
				Distance: current.Distance + 1,
				Path:     newPath,
			})
		}
	}

	return results, nil
}

// DFS performs depth-first search from a source node
func DFS(ctx context.Context, db GraphDB, sourceID model.NodeID, maxHops int, edgeKinds []model.EdgeKind) ([]*TraversalResult, error) {
	sourceNode, err := db.GetNode(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	var results []*TraversalResult
	visited := map[model.NodeID]bool{}
	err = dfsRecursive(ctx, db, sourceNode, 0, maxHops, []model.NodeID{sourceID}, edgeKinds, visited, &results)
	if err != nil {
		return nil, err
	}

	return results, nil
}

func dfsRecursive(
	ctx context.Context,
	db GraphDB,
	current *model.Node,
	distance int,
	maxHops int,
	path []model.NodeID,
	edgeKinds []model.EdgeKind,
	visited map[model.NodeID]bool,
	results *[]*TraversalResult,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	visited[current.ID()] = true

	pathCopy := make([]model.NodeID, len(path))
	copy(pathCopy, path)
	*results = append(*results, &TraversalResult{
		Node:     current,
		Distance: distance,
		Path:     pathCopy,
	})

	if distance >= maxHops {
		return nil
	}

	targets, err := expand(ctx, db, current, edgeKinds)
	if err != nil {
		return err
	}

	for _, targetID := range targets {
		if visited[targetID] {
			continue
		}

		targetNode, err := db.GetNode(ctx, targetID)
		if err != nil {
			continue
		}

		newPath := make([]model.NodeID, len(path), len(path)+1)
		copy(newPath, path)
		newPath = append(newPath, targetID)

		err = dfsRecursive(ctx, db, targetNode, distance+1, maxHops, newPath, edgeKinds, visited, results)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetNeighbors retrieves the immediate neighbors of a node
func GetNeighbors(ctx context.Context, db GraphDB, id model.NodeID, edgeKinds []model.EdgeKind) ([]*model.Node, error) {
	results, err := BFS(ctx, db, id, 1, edgeKinds)
	if err != nil {
		return nil, err
	}

	// Skip the source node itself (first result)
	neighbors := make([]*model.Node, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].Node)
	}

	return neighbors, nil
}

// expand returns the ids reachable from node over one edge. Papers own
// their edges, authors and keywords are reached from papers and lead back.
func expand(ctx context.Context, db GraphDB, node *model.Node, edgeKinds []model.EdgeKind) ([]model.NodeID, error) {
	id := node.ID()
	edges, err := db.GetEdges(ctx, id, edgeKinds)
	if err != nil {
		return nil, err
	}

	var targets []model.NodeID
	for _, edge := range edges {
		switch node.Kind {
		case model.NodeKindPaper:
			if edge.From == id {
				targets = append(targets, edge.To)
			}
		case model.NodeKindAuthor, model.NodeKindKeyword:
			if edge.To == id {
				targets = append(targets, edge.From)
			}
		default:
			return nil, helper.Wrap(helper.ErrInvalidInput, "unknown node kind %v", node.Kind)
		}
	}
	return targets, nil
}

package model

import (
	"fmt"
	"strings"
)

// NodeKind discriminates the exploration graph node variants.
type NodeKind int

const (
	NodeKindPaper NodeKind = iota + 1
	NodeKindAuthor
	NodeKindKeyword
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindPaper:
		return "paper"
	case NodeKindAuthor:
		return "author"
	case NodeKindKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// EdgeKind labels a relation between two nodes.
type EdgeKind string

const (
	EdgeAuthoredBy EdgeKind = "AUTHORED_BY" // paper -> author
	EdgeMentions   EdgeKind = "MENTIONS"    // paper -> keyword
)

// NodeID identifies a node by kind and normalized key.
type NodeID struct {
	Kind NodeKind `json:"kind"`
	Key  string   `json:"key"`
}

func (id NodeID) String() string {
	return id.Kind.String() + ":" + id.Key
}

// PaperNode is the payload of a paper node.
type PaperNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

// AuthorNode is the payload of an author node.
type AuthorNode struct {
	Name string `json:"name"`
}

// KeywordNode is the payload of a keyword node.
type KeywordNode struct {
	Term string `json:"term"`
}

// Node is a tagged variant: exactly the payload matching Kind is set.
type Node struct {
	Kind    NodeKind     `json:"kind"`
	Paper   *PaperNode   `json:"paper,omitempty"`
	Author  *AuthorNode  `json:"author,omitempty"`
	Keyword *KeywordNode `json:"keyword,omitempty"`
}

// NewPaperNode creates a paper node.
func NewPaperNode(p PaperNode) *Node {
	return &Node{Kind: NodeKindPaper, Paper: &p}
}

// NewAuthorNode creates an author node.
func NewAuthorNode(name string) *Node {
	return &Node{Kind: NodeKindAuthor, Author: &AuthorNode{Name: name}}
}

// NewKeywordNode creates a keyword node.
func NewKeywordNode(term string) *Node {
	return &Node{Kind: NodeKindKeyword, Keyword: &KeywordNode{Term: term}}
}

// Label returns the display label of the node.
func (n *Node) Label() string {
	switch n.Kind {
	case NodeKindPaper:
		return n.Paper.Title
	case NodeKindAuthor:
		return n.Author.Name
	case NodeKindKeyword:
		return n.Keyword.Term
	default:
		return ""
	}
}

// ID returns the node identity. Author and keyword keys are case-insensitive.
func (n *Node) ID() NodeID {
	switch n.Kind {
	case NodeKindPaper:
		return NodeID{Kind: n.Kind, Key: n.Paper.ID}
	case NodeKindAuthor:
		return NodeID{Kind: n.Kind, Key: NormalizeKey(n.Author.Name)}
	case NodeKindKeyword:
		return NodeID{Kind: n.Kind, Key: NormalizeKey(n.Keyword.Term)}
	default:
		return NodeID{Kind: n.Kind}
	}
}

// NormalizeKey lowercases and collapses whitespace.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Edge connects two nodes.
type Edge struct {
	From NodeID   `json:"from"`
	To   NodeID   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

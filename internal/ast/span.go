package ast

// Span locates a node in its source text.
type Span struct {
	Src   *Source
	Start int
	End   int
}

// Source is the statement text shared by all nodes of one tree.
type Source struct {
	Text string
}

// Text recovers the original source of the node.
func (s Span) Text() string {
	if s.Src == nil || s.Start < 0 || s.End > len(s.Src.Text) || s.Start > s.End {
		return ""
	}
	return s.Src.Text[s.Start:s.End]
}

// Pos returns the byte offset at which the node starts.
func (s Span) Pos() int { return s.Start }

func (s Span) span() Span { return s }

// Node is implemented by every tree element.
type Node interface {
	span() Span
	Text() string
}

// TextOf returns the source text of any node, or "" for nil.
func TextOf(n Node) string {
	if n == nil {
		return ""
	}
	return n.Text()
}

// Package query compiles the trade filter DSL into executable predicates.
// A query is a boolean combination of comparisons: `;` is AND, `,` is OR,
// parentheses group. Selectors are restricted to a closed whitelist and each
// operator is checked against the field's declared type before anything
// reaches the store.
package query

// Node is a filter AST node: AndNode, OrNode or ComparisonNode.
// The grammar is fixed and small, so the node set is closed.
type Node interface {
	isNode()
}

// AndNode is the conjunction of its children
type AndNode struct {
	Children []Node
}

// OrNode is the disjunction of its children
type OrNode struct {
	Children []Node
}

// ComparisonNode is a single selector/operator/arguments comparison
type ComparisonNode struct {
	Selector  string
	Operator  string
	Arguments []string
}

func (AndNode) isNode()        {}
func (OrNode) isNode()         {}
func (ComparisonNode) isNode() {}

// Supported comparison operators
const (
	OpEqual          = "=="
	OpNotEqual       = "!="
	OpGreaterOrEqual = "=ge="
	OpLessOrEqual    = "=le="
	OpGreaterThan    = "=gt="
	OpLessThan       = "=lt="
	OpIn             = "=in="
	OpOut            = "=out="
)

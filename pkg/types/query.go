package types

import "time"

// Operator is a comparison operator in a where-expression.
type Operator string

const (
	OpEqual    Operator = "="
	OpNotEqual Operator = "!="
	OpLike     Operator = "LIKE" // "%" is the multi-char wildcard, "_" single-char
	OpNotLike  Operator = "NOT LIKE"
	OpIn       Operator = "IN"
)

// Expr is a node of a nested boolean where-expression. The three node
// shapes are Cond (field comparison), Junction (AND/OR over children),
// and Negation (NOT over one child).
type Expr interface {
	exprNode()
}

// Cond compares a document field against a value. Field may be a declared
// column name or a dotted field path.
type Cond struct {
	Field string
	Op    Operator
	Value any // for OpIn: a []any or []string of candidates
}

// JunctionOp joins child expressions.
type JunctionOp string

const (
	JunctionAnd JunctionOp = "AND"
	JunctionOr  JunctionOp = "OR"
)

// Junction combines child expressions with AND or OR. An empty AND is
// true; an empty OR is false.
type Junction struct {
	Op   JunctionOp
	Args []Expr
}

// Negation inverts one child expression.
type Negation struct {
	Arg Expr
}

func (Cond) exprNode()     {}
func (Junction) exprNode() {}
func (Negation) exprNode() {}

// Constructors for readable query building.

func Eq(field string, value any) Expr      { return Cond{Field: field, Op: OpEqual, Value: value} }
func Ne(field string, value any) Expr     { return Cond{Field: field, Op: OpNotEqual, Value: value} }
func Like(field, pattern string) Expr     { return Cond{Field: field, Op: OpLike, Value: pattern} }
func NotLike(field, pattern string) Expr  { return Cond{Field: field, Op: OpNotLike, Value: pattern} }
func In(field string, values ...any) Expr { return Cond{Field: field, Op: OpIn, Value: values} }
func And(args ...Expr) Expr               { return Junction{Op: JunctionAnd, Args: args} }
func Or(args ...Expr) Expr                { return Junction{Op: JunctionOr, Args: args} }
func Not(arg Expr) Expr                   { return Negation{Arg: arg} }

// OrderBy is one sort key of a select.
type OrderBy struct {
	Field      string
	Descending bool
}

// SelectOptions describes a listing/search request.
type SelectOptions struct {
	// Fields to return per row; empty returns whole documents.
	Fields []string
	// Where filters rows; nil matches everything.
	Where Expr
	// OrderBy sort keys, applied in priority order.
	OrderBy []OrderBy
	// Start and Count window the sorted result. Count 0 means no limit.
	// The window is always applied after the global sort.
	Start int
	Count int
}

// SelectResult carries the windowed rows plus the pre-window match count
// and elapsed wall time, which callers use for "showing N of M" feedback.
type SelectResult struct {
	Rows    []Document
	Total   int
	Elapsed time.Duration
}

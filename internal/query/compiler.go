package query

import (
	"strings"
	"time"

	"github.com/Aidin1998/tradebook/pkg/apperrors"
	"github.com/Aidin1998/tradebook/pkg/metrics"
	"github.com/Aidin1998/tradebook/pkg/models"
)

const dateLayout = "2006-01-02"

type fieldType int

const (
	fieldString fieldType = iota
	fieldDate
)

// fieldDef binds a whitelisted selector to its column, declared type and
// in-memory accessor. The whitelist is the DSL's safety boundary: nothing
// outside it ever reaches the store.
type fieldDef struct {
	column string
	typ    fieldType
	str    func(*models.Trade) string
	date   func(*models.Trade) time.Time
}

var fields = map[string]fieldDef{
	"tradeDate": {
		column: "trades.trade_date",
		typ:    fieldDate,
		date:   func(t *models.Trade) time.Time { return t.TradeDate },
	},
	"book.bookName": {
		column: "books.book_name",
		typ:    fieldString,
		str: func(t *models.Trade) string {
			if t.Book == nil {
				return ""
			}
			return t.Book.BookName
		},
	},
	"counterparty.name": {
		column: "counterparties.name",
		typ:    fieldString,
		str: func(t *models.Trade) string {
			if t.Counterparty == nil {
				return ""
			}
			return t.Counterparty.Name
		},
	},
	"tradeStatus.tradeStatus": {
		column: "trades.trade_status",
		typ:    fieldString,
		str:    func(t *models.Trade) string { return string(t.TradeStatus) },
	},
}

// Predicate is an executable filter condition. It can evaluate a loaded trade
// version in memory or contribute a WHERE clause (against the store's joined
// trade/book/counterparty columns) for push-down.
type Predicate struct {
	match func(*models.Trade) bool
	expr  string
	args  []any
}

// MatchAll is the no-op predicate every boolean fold degenerates to when it
// has no children.
var MatchAll = &Predicate{}

// Matches evaluates the predicate against a trade version in memory
func (p *Predicate) Matches(t *models.Trade) bool {
	if p.match == nil {
		return true
	}
	return p.match(t)
}

// Clause returns the SQL fragment and arguments for push-down. An empty
// fragment means "match all".
func (p *Predicate) Clause() (string, []any) {
	return p.expr, p.args
}

// Compile parses and compiles filter text. Blank text compiles to MatchAll.
func Compile(text string) (*Predicate, error) {
	if strings.TrimSpace(text) == "" {
		return MatchAll, nil
	}
	node, err := Parse(text)
	if err != nil {
		metrics.QueryCompiles.WithLabelValues("error").Inc()
		return nil, err
	}
	pred, err := CompileNode(node)
	if err != nil {
		metrics.QueryCompiles.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.QueryCompiles.WithLabelValues("ok").Inc()
	return pred, nil
}

// CompileNode compiles an AST bottom-up into a predicate
func CompileNode(node Node) (*Predicate, error) {
	switch n := node.(type) {
	case AndNode:
		children, err := compileChildren(n.Children)
		if err != nil {
			return nil, err
		}
		return foldAnd(children), nil
	case OrNode:
		children, err := compileChildren(n.Children)
		if err != nil {
			return nil, err
		}
		return foldOr(children), nil
	case ComparisonNode:
		return compileComparison(n)
	}
	return nil, apperrors.QuerySyntax("", "unknown node type")
}

func compileChildren(nodes []Node) ([]*Predicate, error) {
	preds := make([]*Predicate, 0, len(nodes))
	for _, child := range nodes {
		p, err := CompileNode(child)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func foldAnd(children []*Predicate) *Predicate {
	// match-all children are identity elements of conjunction
	effective := children[:0:0]
	for _, c := range children {
		if c.expr != "" || c.match != nil {
			effective = append(effective, c)
		}
	}
	switch len(effective) {
	case 0:
		return MatchAll
	case 1:
		return effective[0]
	}

	exprs := make([]string, len(effective))
	var args []any
	for i, c := range effective {
		exprs[i] = c.expr
		args = append(args, c.args...)
	}
	preds := effective
	return &Predicate{
		expr: "(" + strings.Join(exprs, " AND ") + ")",
		args: args,
		match: func(t *models.Trade) bool {
			for _, c := range preds {
				if !c.Matches(t) {
					return false
				}
			}
			return true
		},
	}
}

func foldOr(children []*Predicate) *Predicate {
	if len(children) == 0 {
		return MatchAll
	}
	for _, c := range children {
		// a match-all disjunct absorbs the whole disjunction
		if c.expr == "" && c.match == nil {
			return MatchAll
		}
	}
	if len(children) == 1 {
		return children[0]
	}

	exprs := make([]string, len(children))
	var args []any
	for i, c := range children {
		exprs[i] = c.expr
		args = append(args, c.args...)
	}
	preds := children
	return &Predicate{
		expr: "(" + strings.Join(exprs, " OR ") + ")",
		args: args,
		match: func(t *models.Trade) bool {
			for _, c := range preds {
				if c.Matches(t) {
					return true
				}
			}
			return false
		},
	}
}

func compileComparison(n ComparisonNode) (*Predicate, error) {
	field, ok := fields[n.Selector]
	if !ok {
		return nil, apperrors.UnsupportedField(n.Selector)
	}
	if len(n.Arguments) == 0 {
		return nil, apperrors.QuerySyntax(n.Selector+n.Operator, "missing argument")
	}

	switch n.Operator {
	case OpEqual, OpNotEqual:
		return compileEquality(field, n)
	case OpGreaterOrEqual, OpLessOrEqual, OpGreaterThan, OpLessThan:
		if field.typ != fieldDate {
			return nil, apperrors.OperatorIncompatible(n.Operator, n.Selector)
		}
		return compileDateOrder(field, n)
	case OpIn, OpOut:
		return compileMembership(field, n)
	}
	return nil, apperrors.QuerySyntax(n.Operator, "unknown operator")
}

func compileEquality(field fieldDef, n ComparisonNode) (*Predicate, error) {
	negate := n.Operator == OpNotEqual

	if field.typ == fieldDate {
		want, err := coerceDate(n.Arguments[0], n.Selector)
		if err != nil {
			return nil, err
		}
		expr := field.column + " = ?"
		if negate {
			expr = field.column + " <> ?"
		}
		get := field.date
		return &Predicate{
			expr: expr,
			args: []any{want},
			match: func(t *models.Trade) bool {
				return sameDay(get(t), want) != negate
			},
		}, nil
	}

	arg := n.Arguments[0]
	get := field.str

	// A * wildcard turns equality into a case-insensitive pattern match.
	// Negated forms admit NULL joined columns so the SQL and in-memory
	// evaluations agree on trades with no linked reference row.
	if strings.Contains(arg, "*") {
		pattern := strings.ToLower(arg)
		like := strings.ReplaceAll(pattern, "*", "%")
		expr := "LOWER(" + field.column + ") LIKE ?"
		if negate {
			expr = "(" + field.column + " IS NULL OR LOWER(" + field.column + ") NOT LIKE ?)"
		}
		return &Predicate{
			expr: expr,
			args: []any{like},
			match: func(t *models.Trade) bool {
				return wildcardMatch(strings.ToLower(get(t)), pattern) != negate
			},
		}, nil
	}

	expr := field.column + " = ?"
	if negate {
		expr = "(" + field.column + " IS NULL OR " + field.column + " <> ?)"
	}
	return &Predicate{
		expr: expr,
		args: []any{arg},
		match: func(t *models.Trade) bool {
			return (get(t) == arg) != negate
		},
	}, nil
}

func compileDateOrder(field fieldDef, n ComparisonNode) (*Predicate, error) {
	want, err := coerceDate(n.Arguments[0], n.Selector)
	if err != nil {
		return nil, err
	}
	get := field.date

	var sqlOp string
	var cmp func(time.Time) bool
	switch n.Operator {
	case OpGreaterOrEqual:
		sqlOp, cmp = ">=", func(v time.Time) bool { return !v.Before(want) }
	case OpLessOrEqual:
		sqlOp, cmp = "<=", func(v time.Time) bool { return !v.After(want) }
	case OpGreaterThan:
		sqlOp, cmp = ">", func(v time.Time) bool { return v.After(want) }
	case OpLessThan:
		sqlOp, cmp = "<", func(v time.Time) bool { return v.Before(want) }
	}

	return &Predicate{
		expr:  field.column + " " + sqlOp + " ?",
		args:  []any{want},
		match: func(t *models.Trade) bool { return cmp(get(t)) },
	}, nil
}

func compileMembership(field fieldDef, n ComparisonNode) (*Predicate, error) {
	negate := n.Operator == OpOut

	if field.typ == fieldDate {
		want := make([]time.Time, len(n.Arguments))
		for i, raw := range n.Arguments {
			d, err := coerceDate(raw, n.Selector)
			if err != nil {
				return nil, err
			}
			want[i] = d
		}
		expr := field.column + " IN ?"
		if negate {
			expr = field.column + " NOT IN ?"
		}
		get := field.date
		return &Predicate{
			expr: expr,
			args: []any{want},
			match: func(t *models.Trade) bool {
				v := get(t)
				for _, w := range want {
					if sameDay(v, w) {
						return !negate
					}
				}
				return negate
			},
		}, nil
	}

	want := append([]string(nil), n.Arguments...)
	expr := field.column + " IN ?"
	if negate {
		expr = "(" + field.column + " IS NULL OR " + field.column + " NOT IN ?)"
	}
	get := field.str
	return &Predicate{
		expr: expr,
		args: []any{want},
		match: func(t *models.Trade) bool {
			v := get(t)
			for _, w := range want {
				if v == w {
					return !negate
				}
			}
			return negate
		},
	}, nil
}

func coerceDate(raw, selector string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.TypeCoercion(raw, selector, err)
	}
	return d, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// wildcardMatch matches s against a lowercase pattern where * stands for any
// sequence of characters
func wildcardMatch(s, pattern string) bool {
	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	return strings.HasSuffix(s, last) && len(s) >= len(last)
}

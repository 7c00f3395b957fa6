package zorm

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Query is a lazy, fluent SELECT builder rooted at one model. Nothing is sent
// to the database until FetchOne, All, Count or Exists is called.
//
// Builder methods mutate and return the receiver; use Clone to branch.
// Errors are accumulated and reported by ToSql or the executing method.
type Query struct {
	conn  *Connection
	model *ModelDef

	tableName string
	alias     string

	selected      *selected
	selectAliases map[string]string // alias -> expression
	joins         []*Join
	whereClause   *whereClause
	groupByClause *GroupBy
	havings       []cond
	orderByClause *orderByClause
	limitClause   *Limit
	offsetClause  *Offset

	forcePrimary bool
	err          error
}

// newQuery roots a query at model, selecting from its table under its alias.
func newQuery(conn *Connection, model *ModelDef) *Query {
	q := &Query{conn: conn, model: model}
	if model != nil {
		q.tableName = model.Table
		q.alias = model.alias()
	}
	return q
}

// Model returns the model rows of this query bind to.
func (q *Query) Model() *ModelDef { return q.model }

// Err returns the first error recorded while building the query.
func (q *Query) Err() error { return q.err }

// Qualify prefixes column with the root table alias, both quoted for the
// connection's dialect.
func (q *Query) Qualify(column string) string {
	if q.alias == "" {
		return column
	}
	return q.dialect().QuoteColumn(q.alias, column)
}

// QualifyTable is Qualify for a table other than the root, such as a pivot.
func (q *Query) QualifyTable(table, column string) string {
	return q.dialect().QuoteColumn(table, column)
}

// QuoteIdentifier quotes a table or column name for the connection's dialect.
func (q *Query) QuoteIdentifier(ident string) string {
	return q.dialect().Quote(ident)
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

type binaryOp string

const (
	Eq   = "="
	GT   = ">"
	LT   = "<"
	GE   = ">="
	LE   = "<="
	NE   = "!="
	Like = "LIKE"
	In   = "IN"
)

type cond struct {
	Lhs string
	Op  binaryOp
	Rhs any
}

func (c cond) ToSql() (string, []any, error) {
	if c.Op == In {
		switch rhs := c.Rhs.(type) {
		case []any:
			if len(rhs) == 0 {
				return "1 = 0", nil, nil
			}
			phs := strings.Repeat("?,", len(rhs))
			return fmt.Sprintf("%s IN (%s)", c.Lhs, phs[:len(phs)-1]), rhs, nil
		case *raw:
			return fmt.Sprintf("%s IN (%s)", c.Lhs, rhs.sql), rhs.args, nil
		default:
			return "", nil, fmt.Errorf("right side of cond when operator is IN should be either an any slice or *raw")
		}
	}

	if c.Rhs == nil {
		switch c.Op {
		case Eq:
			return c.Lhs + " IS NULL", nil, nil
		case NE:
			return c.Lhs + " IS NOT NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("cannot compare %s with NULL using %s", c.Lhs, c.Op)
		}
	}

	return fmt.Sprintf("%s %s ?", c.Lhs, c.Op), []any{c.Rhs}, nil
}

const (
	nextType_AND = "AND"
	nextType_OR  = "OR"
)

type whereClause struct {
	nextTyp string
	next    *whereClause
	cond
	raw  string
	args []any
}

func (w *whereClause) ToSql() (string, []any, error) {
	var (
		base string
		args []any
		err  error
	)

	if w.raw != "" {
		base = "(" + w.raw + ")"
		args = w.args
	} else {
		base, args, err = w.cond.ToSql()
		if err != nil {
			return "", nil, err
		}
	}

	if w.next == nil {
		return base, args, nil
	}

	next, nextArgs, err := w.next.ToSql()
	if err != nil {
		return "", nil, err
	}

	return base + " " + w.nextTyp + " " + next, append(args, nextArgs...), nil
}

func (w *whereClause) clone() *whereClause {
	if w == nil {
		return nil
	}
	c := *w
	c.args = slices.Clone(w.args)
	c.next = w.next.clone()
	return &c
}

// parseWhere turns Where-style arguments into a clause:
// (Raw), (column, value) or (column, operator, value).
func parseWhere(parts []any) (*whereClause, error) {
	switch len(parts) {
	case 1:
		r, isRaw := parts[0].(*raw)
		if !isRaw {
			return nil, fmt.Errorf("when you have one argument passed to where, it should be *raw")
		}
		return &whereClause{raw: r.sql, args: r.args}, nil
	case 2:
		col, ok := parts[0].(string)
		if !ok {
			return nil, fmt.Errorf("where column must be a string, got %T", parts[0])
		}
		return &whereClause{cond: cond{Lhs: col, Op: Eq, Rhs: parts[1]}}, nil
	case 3:
		col, ok := parts[0].(string)
		op, opOK := parts[1].(string)
		if !ok || !opOK {
			return nil, fmt.Errorf("where column and operator must be strings")
		}
		return &whereClause{cond: cond{Lhs: col, Op: binaryOp(op), Rhs: parts[2]}}, nil
	default:
		return nil, fmt.Errorf("wrong number of arguments passed to Where clause")
	}
}

func (q *Query) addWhere(typ string, w *whereClause) *Query {
	if q.whereClause == nil {
		q.whereClause = w
		return q
	}

	last := q.whereClause
	for last.next != nil {
		last = last.next
	}
	last.nextTyp = typ
	last.next = w

	return q
}

// Where adds a condition joined with AND. It accepts (Raw(...)),
// (column, value) for equality, or (column, operator, value).
// A nil value compared with "=" renders IS NULL.
func (q *Query) Where(parts ...any) *Query {
	w, err := parseWhere(parts)
	if err != nil {
		return q.fail(err)
	}
	return q.addWhere(nextType_AND, w)
}

// AndWhere is an alias of Where.
func (q *Query) AndWhere(parts ...any) *Query {
	return q.Where(parts...)
}

// OrWhere adds a condition joined with OR.
func (q *Query) OrWhere(parts ...any) *Query {
	w, err := parseWhere(parts)
	if err != nil {
		return q.fail(err)
	}
	return q.addWhere(nextType_OR, w)
}

// WhereIn adds `column IN (...)`. Pass either the values or a single Raw subquery.
func (q *Query) WhereIn(column string, values ...any) *Query {
	var rhs any = values
	if len(values) == 1 {
		if r, isRaw := values[0].(*raw); isRaw {
			rhs = r
		}
	}
	return q.addWhere(nextType_AND, &whereClause{cond: cond{Lhs: column, Op: In, Rhs: rhs}})
}

// WhereNull adds `column IS NULL`.
func (q *Query) WhereNull(column string) *Query {
	return q.addWhere(nextType_AND, &whereClause{cond: cond{Lhs: column, Op: Eq}})
}

type joinType string

const (
	JoinTypeInner joinType = "INNER"
	JoinTypeLeft  joinType = "LEFT"
	JoinTypeRight joinType = "RIGHT"
	JoinTypeFull  joinType = "FULL OUTER"
)

type JoinOn struct {
	Lhs string
	Op  string
	Rhs string
}

func (j JoinOn) String() string {
	return fmt.Sprintf("%s %s %s", j.Lhs, j.Op, j.Rhs)
}

type Join struct {
	Type  joinType
	Table string
	On    []JoinOn
}

func (j Join) String() string {
	ons := make([]string, 0, len(j.On))
	for _, on := range j.On {
		ons = append(ons, on.String())
	}
	return fmt.Sprintf("%s JOIN %s ON %s", j.Type, j.Table, strings.Join(ons, " AND "))
}

// Join starts a join of the given kind. Its condition is added with On.
func (q *Query) Join(table string, kind joinType) *Query {
	q.joins = append(q.joins, &Join{Type: kind, Table: table})
	return q
}

// On adds a condition to the most recent Join. Both sides are column
// expressions, not bound values.
func (q *Query) On(lhs, op, rhs string) *Query {
	if len(q.joins) == 0 {
		return q.fail(fmt.Errorf("on %s %s %s called before join", lhs, op, rhs))
	}
	last := q.joins[len(q.joins)-1]
	last.On = append(last.On, JoinOn{Lhs: lhs, Op: op, Rhs: rhs})
	return q
}

// LeftJoin adds a LEFT JOIN clause to the query.
func (q *Query) LeftJoin(table, onLhs, onRhs string) *Query {
	return q.Join(table, JoinTypeLeft).On(onLhs, Eq, onRhs)
}

// InnerJoin adds an INNER JOIN clause to the query.
func (q *Query) InnerJoin(table, onLhs, onRhs string) *Query {
	return q.Join(table, JoinTypeInner).On(onLhs, Eq, onRhs)
}

type selected struct {
	Columns []string
}

func (s selected) String() string {
	return strings.Join(s.Columns, ", ")
}

// Select adds raw column expressions to the SELECT list. Without any, the
// query selects every column of the root table.
func (q *Query) Select(columns ...string) *Query {
	if q.selected == nil {
		q.selected = &selected{}
	}
	q.selected.Columns = append(q.selected.Columns, columns...)
	return q
}

// SelectAs adds `expr AS alias` to the SELECT list. Having can reference the alias.
func (q *Query) SelectAs(expr, alias string) *Query {
	if q.selectAliases == nil {
		q.selectAliases = make(map[string]string)
	}
	q.selectAliases[alias] = expr
	return q.Select(expr + " AS " + alias)
}

type GroupBy struct {
	Columns []string
}

func (g GroupBy) String() string {
	return fmt.Sprintf("GROUP BY %s", strings.Join(g.Columns, ", "))
}

// GroupBy adds a GROUP BY clause to the query.
func (q *Query) GroupBy(columns ...string) *Query {
	if q.groupByClause == nil {
		q.groupByClause = &GroupBy{}
	}
	q.groupByClause.Columns = append(q.groupByClause.Columns, columns...)
	return q
}

// Having adds a post-aggregation condition joined with AND. column may be an
// alias declared with SelectAs.
func (q *Query) Having(column, op string, value any) *Query {
	q.havings = append(q.havings, cond{Lhs: column, Op: binaryOp(op), Rhs: value})
	return q
}

const (
	ASC  string = "ASC"
	DESC string = "DESC"
)

type orderByClause struct {
	Columns [][2]string
}

func (o orderByClause) String() string {
	tuples := make([]string, 0, len(o.Columns))
	for _, pair := range o.Columns {
		tuples = append(tuples, fmt.Sprintf("%s %s", pair[0], pair[1]))
	}
	return fmt.Sprintf("ORDER BY %s", strings.Join(tuples, ", "))
}

// OrderBy adds an ORDER BY clause to the query.
func (q *Query) OrderBy(column, order string) *Query {
	if q.orderByClause == nil {
		q.orderByClause = &orderByClause{}
	}
	q.orderByClause.Columns = append(q.orderByClause.Columns, [2]string{column, order})
	return q
}

type Limit struct {
	N int
}

func (l Limit) String() string {
	return fmt.Sprintf("LIMIT %d", l.N)
}

type Offset struct {
	N int
}

func (o Offset) String() string {
	return fmt.Sprintf("OFFSET %d", o.N)
}

// Limit adds a LIMIT clause to the query.
func (q *Query) Limit(n int) *Query {
	q.limitClause = &Limit{N: n}
	return q
}

// Offset adds an OFFSET clause to the query.
func (q *Query) Offset(n int) *Query {
	q.offsetClause = &Offset{N: n}
	return q
}

// Clone returns an independent copy of the query.
func (q *Query) Clone() *Query {
	c := *q
	if q.selected != nil {
		c.selected = &selected{Columns: slices.Clone(q.selected.Columns)}
	}
	c.selectAliases = maps.Clone(q.selectAliases)
	c.joins = make([]*Join, 0, len(q.joins))
	for _, j := range q.joins {
		jc := *j
		jc.On = slices.Clone(j.On)
		c.joins = append(c.joins, &jc)
	}
	c.whereClause = q.whereClause.clone()
	if q.groupByClause != nil {
		c.groupByClause = &GroupBy{Columns: slices.Clone(q.groupByClause.Columns)}
	}
	c.havings = slices.Clone(q.havings)
	if q.orderByClause != nil {
		c.orderByClause = &orderByClause{Columns: slices.Clone(q.orderByClause.Columns)}
	}
	if q.limitClause != nil {
		l := *q.limitClause
		c.limitClause = &l
	}
	if q.offsetClause != nil {
		o := *q.offsetClause
		c.offsetClause = &o
	}
	return &c
}

func (q *Query) dialect() *Dialect {
	if q.conn == nil || q.conn.Dialect == nil {
		return nil
	}
	return q.conn.Dialect
}

func (q *Query) isAggregated() bool {
	return q.groupByClause != nil || len(q.havings) > 0
}

// toSql renders the query with `?` placeholders.
func (q *Query) toSql() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if q.tableName == "" {
		return "", nil, fmt.Errorf("table name cannot be empty")
	}

	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString("SELECT ")
	if q.selected == nil || len(q.selected.Columns) == 0 {
		sb.WriteString(q.Qualify("*"))
	} else {
		sb.WriteString(q.selected.String())
	}

	sb.WriteString(" FROM ")
	sb.WriteString(q.QuoteIdentifier(q.tableName))
	if q.alias != "" && q.alias != q.tableName {
		sb.WriteString(" AS ")
		sb.WriteString(q.QuoteIdentifier(q.alias))
	}

	for _, join := range q.joins {
		if len(join.On) == 0 {
			return "", nil, fmt.Errorf("join on %s has no condition", join.Table)
		}
		sb.WriteString(" ")
		sb.WriteString(join.String())
	}

	if q.whereClause != nil {
		where, whereArgs, err := q.whereClause.ToSql()
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		args = append(args, whereArgs...)
	}

	if q.groupByClause != nil {
		sb.WriteString(" ")
		sb.WriteString(q.groupByClause.String())
	}

	if len(q.havings) > 0 {
		d := q.dialect()
		parts := make([]string, 0, len(q.havings))
		for _, h := range q.havings {
			if expr, isAlias := q.selectAliases[h.Lhs]; isAlias && d != nil && !d.HavingCanReferenceAlias {
				h.Lhs = expr
			}
			part, havingArgs, err := h.ToSql()
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, part)
			args = append(args, havingArgs...)
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if q.orderByClause != nil {
		sb.WriteString(" ")
		sb.WriteString(q.orderByClause.String())
	}

	if q.limitClause != nil {
		sb.WriteString(" ")
		sb.WriteString(q.limitClause.String())
	}

	if q.offsetClause != nil {
		sb.WriteString(" ")
		sb.WriteString(q.offsetClause.String())
	}

	return sb.String(), args, nil
}

// ToSql builds the SQL query string and its arguments, using the placeholder
// style of the connection's dialect.
func (q *Query) ToSql() (string, []any, error) {
	query, args, err := q.toSql()
	if err != nil {
		return "", nil, err
	}
	return q.dialect().Rebind(query), args, nil
}

type raw struct {
	sql  string
	args []any
}

// Raw creates a raw SQL chunk that can be passed to Where and WhereIn.
func Raw(sql string, args ...any) *raw {
	return &raw{sql: sql, args: args}
}

package zorm

import (
	"context"
	"database/sql"
	"time"
)

// reader returns the database reads are sent to: the primary when forced or
// when no replicas are configured, otherwise a load-balanced replica.
func (q *Query) reader() (*sql.DB, error) {
	if q.conn == nil {
		return nil, ErrNoConnection
	}
	if q.forcePrimary || q.conn.resolver == nil {
		if q.conn.DB == nil {
			return nil, ErrNoConnection
		}
		return q.conn.DB, nil
	}
	return q.conn.resolver.Replica(), nil
}

// OnPrimary routes the query to the primary even when replicas are configured.
func (q *Query) OnPrimary() *Query {
	q.forcePrimary = true
	return q
}

// queryContext runs query on db, through the statement cache when the
// connection has one. release must be called after rows are closed.
func (c *Connection) queryContext(ctx context.Context, db *sql.DB, query string, args []any) (rows *sql.Rows, release func(), err error) {
	if c.stmtCache == nil {
		rows, err = db.QueryContext(ctx, query, args...)
		return rows, func() {}, err
	}

	stmt, release, err := c.stmtCache.Prepare(ctx, db, query)
	if err != nil {
		return nil, nil, err
	}

	rows, err = stmt.QueryContext(ctx, args...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return rows, release, nil
}

func (q *Query) trace(op string, begin time.Time, query string, args []any, rows int64, err error) {
	if q.conn != nil && q.conn.tracer != nil {
		q.conn.tracer.Trace(op, begin, query, args, rows, err)
	}
}

// All executes the query and returns every matching record.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	db, err := q.reader()
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	rows, release, err := q.conn.queryContext(ctx, db, query, args)
	if err != nil {
		err = WrapQueryError("SELECT", query, args, err)
		q.trace("SELECT", begin, query, args, -1, err)
		return nil, err
	}
	defer release()
	defer rows.Close()

	records, err := bindRecords(q.conn, q.model, rows)
	if err != nil {
		err = WrapQueryError("SCAN", query, args, err)
		q.trace("SELECT", begin, query, args, -1, err)
		return nil, err
	}

	q.trace("SELECT", begin, query, args, int64(len(records)), nil)
	return records, nil
}

// FetchOne executes the query limited to one row. It returns
// ErrRecordNotFound when nothing matches. The receiver is not modified.
func (q *Query) FetchOne(ctx context.Context) (*Record, error) {
	records, err := q.Clone().Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	return records[0], nil
}

// Count returns the number of rows the query yields. Grouped queries are
// counted as a derived table so each group counts once.
func (q *Query) Count(ctx context.Context) (int64, error) {
	c := q.Clone()
	c.orderByClause, c.limitClause, c.offsetClause = nil, nil, nil

	var (
		query string
		args  []any
		err   error
	)
	if c.isAggregated() {
		var inner string
		inner, args, err = c.toSql()
		query = "SELECT COUNT(*) FROM (" + inner + ") AS counted"
	} else {
		c.selected = &selected{Columns: []string{"COUNT(*)"}}
		query, args, err = c.toSql()
	}
	if err != nil {
		return 0, err
	}
	query = c.dialect().Rebind(query)

	db, err := c.reader()
	if err != nil {
		return 0, err
	}

	begin := time.Now()
	rows, release, err := c.conn.queryContext(ctx, db, query, args)
	if err != nil {
		err = WrapQueryError("COUNT", query, args, err)
		c.trace("COUNT", begin, query, args, -1, err)
		return 0, err
	}
	defer release()
	defer rows.Close()

	var count int64
	if rows.Next() {
		err = rows.Scan(&count)
	}
	if err == nil {
		err = rows.Err()
	}
	if err != nil {
		err = WrapQueryError("COUNT", query, args, err)
		c.trace("COUNT", begin, query, args, -1, err)
		return 0, err
	}

	c.trace("COUNT", begin, query, args, 1, nil)
	return count, nil
}

// Exists reports whether the query yields at least one row.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	c := q.Clone()
	c.orderByClause, c.offsetClause = nil, nil
	c.Limit(1)
	if !c.isAggregated() {
		c.selected = &selected{Columns: []string{"1"}}
	}

	query, args, err := c.ToSql()
	if err != nil {
		return false, err
	}

	db, err := c.reader()
	if err != nil {
		return false, err
	}

	begin := time.Now()
	rows, release, err := c.conn.queryContext(ctx, db, query, args)
	if err != nil {
		err = WrapQueryError("EXISTS", query, args, err)
		c.trace("EXISTS", begin, query, args, -1, err)
		return false, err
	}
	defer release()
	defer rows.Close()

	exists := rows.Next()
	if err := rows.Err(); err != nil {
		err = WrapQueryError("EXISTS", query, args, err)
		c.trace("EXISTS", begin, query, args, -1, err)
		return false, err
	}

	c.trace("EXISTS", begin, query, args, -1, nil)
	return exists, nil
}

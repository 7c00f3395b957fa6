package zorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"go.uber.org/zap"
)

var (
	connectionsMu     sync.RWMutex
	globalConnections = map[string]*Connection{}
)

// ConnectionConfig describes one database connection and the models it serves.
type ConnectionConfig struct {
	// Name identifies this database connection. Defaults to "default".
	Name string

	// An existing database connection used as the primary.
	DB *sql.DB

	// SQL dialect used for query generation.
	Dialect *Dialect

	// Models registered with this connection.
	Models []*ModelDef

	// Replicas receive reads, balanced by LoadBalancer (round-robin by default).
	Replicas     []*sql.DB
	LoadBalancer LoadBalancer

	// Logger traces executed statements. Defaults to a no-op logger.
	Logger *zap.Logger
	// SlowThreshold logs statements slower than this at warn level. Zero disables it.
	SlowThreshold time.Duration

	// StatementCacheSize enables a prepared statement cache of that many
	// entries. Zero disables it.
	StatementCacheSize int

	// Enables schema validation:
	//   - Verifies all model and pivot tables exist
	//   - Ensures declared columns exist
	//   - Checks every polymorphic `_id`/`_type` pair and far key is present
	//   - Checks every polymorphic target model is registered
	DatabaseValidations bool
}

// Connection binds a registry of models to a database.
type Connection struct {
	Name                string
	Dialect             *Dialect
	DB                  *sql.DB
	Registry            *Registry
	DatabaseValidations bool

	resolver  *DBResolver
	stmtCache *StmtCache
	logger    *zap.Logger
	tracer    *queryTracer
}

// NewConnection builds a connection without registering it globally. Schema
// validation runs when config.DatabaseValidations is set.
func NewConnection(ctx context.Context, config ConnectionConfig) (*Connection, error) {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.DB == nil {
		return nil, fmt.Errorf("%w: connection %s has no database", ErrInvalidConfig, config.Name)
	}
	if config.Dialect == nil {
		return nil, fmt.Errorf("%w: connection %s has no dialect", ErrInvalidConfig, config.Name)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("connection", config.Name))

	registry, err := NewRegistry(config.Models...)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		Name:                config.Name,
		Dialect:             config.Dialect,
		DB:                  config.DB,
		Registry:            registry,
		DatabaseValidations: config.DatabaseValidations,
		logger:              logger,
		tracer:              newQueryTracer(logger, config.SlowThreshold),
	}

	if config.StatementCacheSize > 0 {
		conn.stmtCache = NewStmtCache(config.StatementCacheSize)
	}

	if len(config.Replicas) > 0 {
		conn.resolver = NewDBResolver(config.DB, config.Replicas, config.LoadBalancer)
	}

	if conn.DatabaseValidations {
		if err := conn.Validate(ctx); err != nil {
			return nil, err
		}
	}

	return conn, nil
}

// SetupConnections configures and registers database connections.
func SetupConnections(ctx context.Context, configs ...ConnectionConfig) error {
	for _, config := range configs {
		conn, err := NewConnection(ctx, config)
		if err != nil {
			return err
		}

		connectionsMu.Lock()
		globalConnections[conn.Name] = conn
		connectionsMu.Unlock()

		conn.logger.Info("connection registered",
			zap.String("dialect", conn.Dialect.DriverName),
			zap.Int("models", len(conn.Registry.Models())),
			zap.Bool("replicas", conn.resolver != nil))
	}

	return nil
}

// GetConnection returns a connection registered with SetupConnections, or nil.
func GetConnection(name string) *Connection {
	connectionsMu.RLock()
	defer connectionsMu.RUnlock()
	return globalConnections[name]
}

// Close releases the connection's cached statements. The databases are
// owned by the caller and left open.
func (c *Connection) Close() error {
	if c == nil || c.stmtCache == nil {
		return nil
	}
	return c.stmtCache.Close()
}

// Logger returns the connection's logger.
func (c *Connection) Logger() *zap.Logger {
	if c == nil || c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// Query starts a query over the named model. An unknown model, or a nil
// connection, is reported when the query is built or executed.
func (c *Connection) Query(model string) *Query {
	if c == nil {
		return (&Query{}).fail(ErrNoConnection)
	}

	def, err := c.Registry.Model(model)
	q := newQuery(c, def)
	if err != nil {
		q.fail(err)
	}
	return q
}

// New returns an unloaded record of the named model.
func (c *Connection) New(model string, attrs map[string]any) (*Record, error) {
	if c == nil {
		return nil, ErrNoConnection
	}

	def, err := c.Registry.Model(model)
	if err != nil {
		return nil, err
	}
	return newRecord(c, def, attrs, false), nil
}

// Find loads one record of the named model by primary key.
func (c *Connection) Find(ctx context.Context, model string, id any) (*Record, error) {
	q := c.Query(model)
	if q.model == nil {
		return nil, q.err
	}
	return q.Where(q.Qualify(q.model.PrimaryKey), id).FetchOne(ctx)
}

// schemaChecker collects missing tables and columns against the live schema.
type schemaChecker struct {
	ctx     context.Context
	conn    *Connection
	tables  map[string]bool
	columns map[string]map[string]bool
	missing map[string]bool
	errs    []error
}

// table reports whether table exists; each missing table is reported once.
func (s *schemaChecker) table(table, origin string) bool {
	if s.tables[table] {
		return true
	}
	if !s.missing[table] {
		s.missing[table] = true
		s.errs = append(s.errs, fmt.Errorf("%w: %s inferred by %s", ErrMissingTable, table, origin))
	}
	return false
}

func (s *schemaChecker) column(table, column, origin string) {
	if !s.table(table, origin) {
		return
	}

	cols, ok := s.columns[table]
	if !ok {
		var err error
		cols, err = s.conn.Dialect.columnNames(s.ctx, s.conn.DB, table)
		if err != nil {
			s.errs = append(s.errs, err)
			return
		}
		s.columns[table] = cols
	}

	if !cols[column] {
		s.errs = append(s.errs, fmt.Errorf("%w: %s.%s inferred by %s", ErrMissingColumn, table, column, origin))
	}
}

func (s *schemaChecker) model(name, origin string) *ModelDef {
	def, err := s.conn.Registry.Model(name)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %w", origin, err))
		return nil
	}
	return def
}

// Validate checks the registered models against the database schema and
// returns every mismatch found.
func (c *Connection) Validate(ctx context.Context) error {
	tables, err := c.Dialect.listTables(ctx, c.DB)
	if err != nil {
		return err
	}

	s := &schemaChecker{
		ctx:     ctx,
		conn:    c,
		tables:  tables,
		columns: map[string]map[string]bool{},
		missing: map[string]bool{},
	}

	for _, def := range c.Registry.Models() {
		s.column(def.Table, def.PrimaryKey, def.Name)
		for _, column := range def.Columns {
			s.column(def.Table, column, def.Name)
		}

		for _, name := range def.RelationNames() {
			origin := def.Name + "." + name

			if spec, ok := def.morphTo[name]; ok {
				s.column(def.Table, idColumn(spec), origin)
				s.column(def.Table, typeColumn(spec), origin)
			}

			if spec, ok := def.morphOneOrMany[name]; ok {
				if target := s.model(spec.Model, origin); target != nil {
					s.column(target.Table, idColumn(spec), origin)
					s.column(target.Table, typeColumn(spec), origin)
				}
			}

			if spec, ok := def.morphManyThrough[name]; ok {
				s.model(spec.Model, origin)
				s.column(spec.Pivot, idColumn(spec), origin)
				s.column(spec.Pivot, typeColumn(spec), origin)
				s.column(spec.Pivot, spec.ForeignOrFarKey, origin)
			}

			if rel, ok := def.relations[name]; ok {
				c.validateRelation(s, def, origin, rel)
			}
		}
	}

	return errors.Join(s.errs...)
}

func (c *Connection) validateRelation(s *schemaChecker, def *ModelDef, origin string, rel Relation) {
	related := s.model(rel.RelatedModel(), origin)
	if related == nil {
		return
	}

	switch rel := rel.(type) {
	case HasManyConfig:
		s.column(related.Table, rel.PropertyForeignKey, origin)
	case HasOneConfig:
		s.column(related.Table, rel.PropertyForeignKey, origin)
	case BelongsToConfig:
		s.column(def.Table, rel.LocalForeignKey, origin)
	case BelongsToManyConfig:
		s.column(rel.IntermediateTable, rel.IntermediateOwnerID, origin)
		s.column(rel.IntermediateTable, rel.IntermediatePropertyID, origin)
	}
}

// PrintSchematic writes a table per model listing its relations.
func (c *Connection) PrintSchematic(w io.Writer) {
	fmt.Fprintf(w, "SQL Dialect: %s\n", c.Dialect.DriverName)

	for _, def := range c.Registry.Models() {
		fmt.Fprintf(w, "%s (table: %s, type: %s, pk: %s)\n", def.Name, def.Table, def.MorphType(), def.PrimaryKey)
		if len(def.Columns) > 0 {
			fmt.Fprintf(w, "columns: %s\n", strings.Join(def.Columns, ", "))
		}

		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Relation", "Kind", "Target", "Keys"})
		for _, name := range def.RelationNames() {
			kind, target, keys := describeRelation(def, name)
			tw.AppendRow(table.Row{name, kind, target, keys})
		}
		fmt.Fprintln(w, tw.Render())
		fmt.Fprintln(w)
	}
}

// PrintSchematics writes the schematic of every registered connection, sorted by name.
func PrintSchematics(w io.Writer) {
	connectionsMu.RLock()
	names := make([]string, 0, len(globalConnections))
	for name := range globalConnections {
		names = append(names, name)
	}
	connectionsMu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "---------------- %s ----------------\n", name)
		GetConnection(name).PrintSchematic(w)
		fmt.Fprintln(w, "-----------------------------------")
	}
}

func describeRelation(def *ModelDef, name string) (kind, target, keys string) {
	if spec, ok := def.morphTo[name]; ok {
		return string(MorphKindTo), "(" + typeColumn(spec) + ")", idColumn(spec) + ", " + typeColumn(spec)
	}
	if spec, ok := def.morphOneOrMany[name]; ok {
		kind = string(MorphKindOneOrMany)
		if spec.Single {
			kind += " (single)"
		}
		return kind, spec.Model, idColumn(spec) + ", " + typeColumn(spec)
	}
	if spec, ok := def.morphManyThrough[name]; ok {
		direction := "end"
		if spec.PolymorphicStart {
			direction = "start"
		}
		return string(MorphKindManyThrough), spec.Model, fmt.Sprintf("%s(%s, %s, %s) polymorphic %s",
			spec.Pivot, idColumn(spec), typeColumn(spec), spec.ForeignOrFarKey, direction)
	}

	rel := def.relations[name]
	switch rel := rel.(type) {
	case HasOneConfig:
		keys = rel.PropertyForeignKey + " -> " + rel.LocalKey
	case HasManyConfig:
		keys = rel.PropertyForeignKey + " -> " + rel.LocalKey
	case BelongsToConfig:
		keys = rel.LocalForeignKey + " -> " + rel.ForeignColumnName
	case BelongsToManyConfig:
		keys = fmt.Sprintf("%s(%s, %s)", rel.IntermediateTable, rel.IntermediateOwnerID, rel.IntermediatePropertyID)
	}
	return string(rel.RelationType()), rel.RelatedModel(), keys
}

package zorm

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// morphModels declares the models used across tests:
//
//   - Website and Article receive upvotes and events (morph-one-or-many / morph-to)
//   - Project and Website are tagged through taggables (morph-many-through both ways)
//   - Website has pages and categories (static relations)
func morphModels() []*ModelDef {
	return []*ModelDef{
		Define("Website", func(c *ModelConfigurator) {
			c.Columns("id", "name")
			c.MorphOneOrMany("upvotes", MorphOneOrMany{Model: "Upvote", Column: "upvoteable"})
			c.MorphOneOrMany("top_upvote", MorphOneOrMany{Model: "Upvote", Column: "upvoteable", Single: true})
			c.MorphManyThrough("tags", MorphManyThrough{
				Model: "Tag", Column: "taggable", Pivot: "taggables", ForeignOrFarKey: "tag_id", PolymorphicStart: true,
			})
			c.HasMany("pages", HasManyConfig{Model: "Page"})
			c.HasOne("home_page", HasOneConfig{Model: "Page"})
			c.BelongsToMany("categories", BelongsToManyConfig{Model: "Category", IntermediateTable: "website_categories"})
		}),
		Define("Article", func(c *ModelConfigurator) {
			c.MorphOneOrMany("upvotes", MorphOneOrMany{Model: "Upvote", Column: "upvoteable"})
		}),
		Define("Upvote", func(c *ModelConfigurator) {
			c.Columns("upvoteable_id", "upvoteable_type", "score")
			c.MorphTo("upvoteable", "upvoteable")
		}),
		Define("Event", func(c *ModelConfigurator) {
			c.MorphTo("subject", "eventable")
		}),
		Define("Project", func(c *ModelConfigurator) {
			c.MorphManyThrough("tags", MorphManyThrough{
				Model: "Tag", Column: "taggable", Pivot: "taggables", ForeignOrFarKey: "tag_id", PolymorphicStart: true,
			})
		}),
		Define("Tag", func(c *ModelConfigurator) {
			c.MorphManyThrough("projects", MorphManyThrough{
				Model: "Project", Column: "taggable", Pivot: "taggables", ForeignOrFarKey: "tag_id",
			})
			c.MorphManyThrough("websites", MorphManyThrough{
				Model: "Website", Column: "taggable", Pivot: "taggables", ForeignOrFarKey: "tag_id",
			})
		}),
		Define("Page", func(c *ModelConfigurator) {
			c.BelongsTo("website", BelongsToConfig{Model: "Website"})
		}),
		Define("Category", nil),
	}
}

const morphSchema = `
CREATE TABLE websites (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE articles (id INTEGER PRIMARY KEY, title TEXT);
CREATE TABLE upvotes (id INTEGER PRIMARY KEY, upvoteable_id INTEGER, upvoteable_type TEXT, score INTEGER);
CREATE TABLE events (id INTEGER PRIMARY KEY, name TEXT, eventable_id INTEGER, eventable_type TEXT);
CREATE TABLE projects (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE taggables (id INTEGER PRIMARY KEY, tag_id INTEGER, taggable_id INTEGER, taggable_type TEXT);
CREATE TABLE pages (id INTEGER PRIMARY KEY, website_id INTEGER, title TEXT);
CREATE TABLE categories (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE website_categories (website_id INTEGER, category_id INTEGER);

INSERT INTO websites (id, name) VALUES (1, 'alpha'), (2, 'beta'), (7, 'gamma');
INSERT INTO articles (id, title) VALUES (7, 'post');
INSERT INTO upvotes (id, upvoteable_id, upvoteable_type, score) VALUES
	(1, 7, 'website', 5), (2, 7, 'website', 3), (3, 7, 'article', 1), (4, 1, 'website', 2);
INSERT INTO events (id, name, eventable_id, eventable_type) VALUES
	(1, 'deploy', 7, 'website'),
	(2, 'publish', 7, 'article'),
	(3, 'orphan', NULL, NULL),
	(4, 'ghost', 99, 'website'),
	(5, 'alien', 1, 'spaceship'),
	(6, 'blank', 1, '');
INSERT INTO projects (id, name) VALUES (1, 'zorm'), (2, 'kohana'), (3, 'unused');
INSERT INTO tags (id, name) VALUES (1, 'go'), (2, 'orm'), (3, 'php');
INSERT INTO taggables (id, tag_id, taggable_id, taggable_type) VALUES
	(1, 1, 1, 'project'),
	(2, 1, 1, 'project'),
	(3, 2, 1, 'project'),
	(4, 1, 2, 'project'),
	(5, 3, 1, 'website');
INSERT INTO pages (id, website_id, title) VALUES (1, 1, 'home'), (2, 1, 'about'), (3, 2, 'index');
INSERT INTO categories (id, name) VALUES (1, 'news'), (2, 'tech'), (3, 'sports');
INSERT INTO website_categories (website_id, category_id) VALUES (1, 1), (1, 2), (2, 3);
`

// setupMorphDB opens an in-memory sqlite database seeded with morphSchema.
// A single connection keeps every query on the same in-memory database.
func setupMorphDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(morphSchema)
	require.NoError(t, err)

	return db
}

// newSQLiteConnection binds morphModels to a seeded sqlite database.
func newSQLiteConnection(t *testing.T, opts ...func(*ConnectionConfig)) *Connection {
	t.Helper()

	config := ConnectionConfig{
		Name:    "test",
		DB:      setupMorphDB(t),
		Dialect: Dialects.SQLite3,
		Models:  morphModels(),
	}
	for _, opt := range opts {
		opt(&config)
	}

	conn, err := NewConnection(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// newMockConnection binds models (morphModels when none are given) to
// sqlmock. Unexpected queries fail the test through ExpectationsWereMet.
func newMockConnection(t *testing.T, dialect *Dialect, logger *zap.Logger, models ...*ModelDef) (*Connection, sqlmock.Sqlmock) {
	t.Helper()

	if len(models) == 0 {
		models = morphModels()
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := NewConnection(context.Background(), ConnectionConfig{
		Name:    "mock",
		DB:      db,
		Dialect: dialect,
		Models:  models,
		Logger:  logger,
	})
	require.NoError(t, err)

	return conn, mock
}

// loadedRecord builds a loaded record without touching the database.
func loadedRecord(t *testing.T, conn *Connection, model string, attrs map[string]any) *Record {
	t.Helper()

	def, err := conn.Registry.Model(model)
	require.NoError(t, err)
	return newRecord(conn, def, attrs, true)
}

func names(records []*Record, column string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, keyString(r.Get(column)))
	}
	return out
}

package zorm

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewConnection_RequiresDatabaseAndDialect(t *testing.T) {
	ctx := context.Background()

	_, err := NewConnection(ctx, ConnectionConfig{Dialect: Dialects.SQLite3})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewConnection(ctx, ConnectionConfig{DB: &sql.DB{}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewConnection(ctx, ConnectionConfig{
		DB:      &sql.DB{},
		Dialect: Dialects.SQLite3,
		Models:  []*ModelDef{Define("Website", nil), Define("Website", nil)},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConnection_ValidateMatchingSchema(t *testing.T) {
	conn := newSQLiteConnection(t, func(c *ConnectionConfig) {
		c.DatabaseValidations = true
	})
	assert.NoError(t, conn.Validate(context.Background()))
}

func TestConnection_ValidateReportsEveryMismatch(t *testing.T) {
	models := append(morphModels(),
		Define("Comment", func(c *ModelConfigurator) {
			c.Columns("body", "author")
			c.MorphTo("commentable", "commentable")
		}),
		Define("Video", func(c *ModelConfigurator) {
			c.MorphOneOrMany("upvotes", MorphOneOrMany{Model: "Upvote", Column: "likeable"})
			c.MorphManyThrough("labels", MorphManyThrough{
				Model: "Label", Column: "labelable", Pivot: "labelables", ForeignOrFarKey: "label_id", PolymorphicStart: true,
			})
		}),
	)

	_, err := NewConnection(context.Background(), ConnectionConfig{
		DB:                  setupMorphDB(t),
		Dialect:             Dialects.SQLite3,
		Models:              models,
		DatabaseValidations: true,
	})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrMissingTable)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.ErrorIs(t, err, ErrUnknownModel)

	msg := err.Error()
	assert.Contains(t, msg, "comments inferred by Comment")
	assert.Contains(t, msg, "videos inferred by Video")
	assert.Contains(t, msg, "upvotes.likeable_id inferred by Video.upvotes")
	assert.Contains(t, msg, "upvotes.likeable_type inferred by Video.upvotes")
	assert.Contains(t, msg, "labelables inferred by Video.labels")
	assert.Equal(t, 1, bytes.Count([]byte(msg), []byte("comments inferred")), "a missing table is reported once")
}

func TestConnection_ValidateStaticRelationColumns(t *testing.T) {
	_, err := NewConnection(context.Background(), ConnectionConfig{
		DB:      setupMorphDB(t),
		Dialect: Dialects.SQLite3,
		Models: []*ModelDef{
			Define("Website", func(c *ModelConfigurator) {
				c.HasMany("pages", HasManyConfig{Model: "Page", PropertyForeignKey: "site_id"})
			}),
			Define("Page", nil),
		},
		DatabaseValidations: true,
	})
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.ErrorContains(t, err, "pages.site_id inferred by Website.pages")
}

func TestSetupConnections(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	err := SetupConnections(context.Background(), ConnectionConfig{
		Name:    "setup-test",
		DB:      setupMorphDB(t),
		Dialect: Dialects.SQLite3,
		Models:  morphModels(),
		Logger:  zap.New(core),
	})
	require.NoError(t, err)

	conn := GetConnection("setup-test")
	require.NotNil(t, conn)
	assert.Equal(t, "setup-test", conn.Name)
	assert.Nil(t, GetConnection("missing"))

	entries := logs.FilterMessage("connection registered").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "setup-test", entries[0].ContextMap()["connection"])

	var buf bytes.Buffer
	PrintSchematics(&buf)
	assert.Contains(t, buf.String(), "---------------- setup-test ----------------")
}

func TestConnection_PrintSchematic(t *testing.T) {
	conn := newSQLiteConnection(t)

	var buf bytes.Buffer
	conn.PrintSchematic(&buf)
	out := buf.String()

	assert.Contains(t, out, "SQL Dialect: sqlite3")
	assert.Contains(t, out, "Website (table: websites, type: website, pk: id)")
	assert.Contains(t, out, "columns: id, name")
	assert.Contains(t, out, "taggables(taggable_id, taggable_type, tag_id) polymorphic start")
	assert.Contains(t, out, "taggables(taggable_id, taggable_type, tag_id) polymorphic end")
	assert.Contains(t, out, "MorphOneOrMany (single)")
	assert.Contains(t, out, "(upvoteable_type)")
	assert.Contains(t, out, "website_categories(website_id, category_id)")
	assert.Contains(t, out, "website_id -> id")
}

func TestConnection_NewRecord(t *testing.T) {
	conn := newSQLiteConnection(t)

	rec, err := conn.New("Website", map[string]any{"name": "draft"})
	require.NoError(t, err)
	assert.False(t, rec.Loaded())
	assert.Equal(t, "website", rec.MorphType())
	assert.Equal(t, "websites", rec.TableName())
	assert.Same(t, conn, rec.Connection())

	_, err = conn.New("Spaceship", nil)
	assert.ErrorIs(t, err, ErrUnknownModel)

	var nilConn *Connection
	_, err = nilConn.New("Website", nil)
	assert.ErrorIs(t, err, ErrNoConnection)
	assert.NotNil(t, nilConn.Logger())
	assert.NoError(t, nilConn.Close())
}

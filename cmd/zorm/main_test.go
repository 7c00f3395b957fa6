package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

const testConfig = `
connection:
  driver: sqlite3
log:
  level: error
models:
  - name: Website
    morph_one_or_many:
      upvotes: {model: Upvote, column: upvoteable}
  - name: Upvote
    morph_to:
      upvoteable: upvoteable
  - name: Project
    morph_many_through:
      tags: {model: Tag, column: taggable, pivot: taggables, foreign_or_far_key: tag_id, polymorphic_start: true}
  - name: Tag
    morph_many_through:
      projects: {model: Project, column: taggable, pivot: taggables, foreign_or_far_key: tag_id}
`

// setupProject writes a seeded sqlite database and a config file, and
// returns the flags pointing at both.
func setupProject(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "cli.db")

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE websites (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE upvotes (id INTEGER PRIMARY KEY, upvoteable_id INTEGER, upvoteable_type TEXT, score INTEGER);
CREATE TABLE projects (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE taggables (id INTEGER PRIMARY KEY, tag_id INTEGER, taggable_id INTEGER, taggable_type TEXT);
INSERT INTO websites (id, name) VALUES (7, 'gamma');
INSERT INTO upvotes (id, upvoteable_id, upvoteable_type, score) VALUES (1, 7, 'website', 5), (2, 7, 'article', 1);
INSERT INTO projects (id, name) VALUES (1, 'zorm'), (2, 'kohana');
INSERT INTO tags (id, name) VALUES (1, 'go'), (2, 'php');
INSERT INTO taggables (id, tag_id, taggable_id, taggable_type) VALUES (1, 1, 1, 'project'), (2, 1, 1, 'project'), (3, 2, 2, 'project');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfgFile := filepath.Join(dir, "zorm.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(testConfig), 0o600))

	return []string{"--config", cfgFile, "--dsn", dsn}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "zorm", cmd.Use)

	for _, flag := range []string{"config", "driver", "dsn", "replica", "statement-cache-size", "slow-threshold", "validate-schema", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"models", "explain", "resolve"})
}

func TestModelsCommand(t *testing.T) {
	out, err := run(t, append([]string{"models", "--validate-schema"}, setupProject(t)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "SQL Dialect: sqlite3")
	assert.Contains(t, out, "Tag (table: tags, type: tag, pk: id)")
	assert.Contains(t, out, "polymorphic end")
}

func TestExplainCommand(t *testing.T) {
	flags := setupProject(t)

	out, err := run(t, append([]string{"explain", "Website", "7", "upvotes"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "kind: many")
	assert.Contains(t, out, `sql: SELECT "upvote".* FROM "upvotes" AS "upvote" WHERE "upvote"."upvoteable_id" = ? AND "upvote"."upvoteable_type" = ?`)
	assert.Contains(t, out, "args: [7 website]")

	out, err = run(t, append([]string{"explain", "Upvote", "1", "upvoteable"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "kind: one")
	assert.Contains(t, out, "gamma")

	out, err = run(t, append([]string{"explain", "Upvote", "2", "upvoteable"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "not found", "article is not a configured model")
}

func TestResolveCommand(t *testing.T) {
	flags := setupProject(t)

	out, err := run(t, append([]string{"resolve", "Project", "1", "tags"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "POLYMORPHIC_COUNT", "go-pretty upper-cases headers")
	assert.Contains(t, out, "go")
	assert.NotContains(t, out, "php")
	assert.Contains(t, out, "(1 rows)")

	out, err = run(t, append([]string{"resolve", "Tag", "1", "projects", "--limit", "5"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "zorm")
	assert.NotContains(t, out, "kohana")
}

func TestCommandErrors(t *testing.T) {
	flags := setupProject(t)

	_, err := run(t, append([]string{"resolve", "Project", "99", "tags"}, flags...)...)
	assert.ErrorContains(t, err, "record not found")

	_, err = run(t, append([]string{"resolve", "Project", "1", "nothing"}, flags...)...)
	assert.ErrorContains(t, err, "undefined attribute")

	_, err = run(t, "explain", "Website", "1")
	assert.Error(t, err, "three arguments are required")

	_, err = run(t, "models", "--dsn", ":memory:")
	assert.ErrorContains(t, err, "no models configured")
}

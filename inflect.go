package zorm

import (
	"strings"
	"sync"

	"github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"
)

var (
	inflectorOnce sync.Once
	inflector     *pluralize.Client
)

// pluralizer returns the shared inflection client. Its rule set is never
// modified after construction, so it is safe to use from many goroutines.
func pluralizer() *pluralize.Client {
	inflectorOnce.Do(func() {
		inflector = pluralize.NewClient()
	})
	return inflector
}

// TableNameFor infers the table of a model from its logical name,
// e.g. "Upvote" -> "upvotes", "BlogPost" -> "blog_posts".
func TableNameFor(model string) string {
	return pluralizer().Plural(strcase.ToSnake(model))
}

// MorphTypeName is the value stored in a `_type` discriminator column for rows
// of the given table: the singular form of the table name ("websites" -> "website").
// Every discriminator comparison goes through this function.
func MorphTypeName(table string) string {
	return pluralizer().Singular(table)
}

// foreignKeyFor returns the conventional foreign key pointing at table,
// e.g. "posts" -> "post_id".
func foreignKeyFor(table string) string {
	return MorphTypeName(table) + "_id"
}

// modelKey normalizes a model name or a stored discriminator value so that
// "BlogPost", "blog_post" and "blogPost" address the same model.
func modelKey(name string) string {
	return strcase.ToSnake(strings.TrimSpace(name))
}

// Package config loads zorm connection and model declarations from YAML,
// environment variables and command-line flags.
package config

import "time"

// Config is the root of a zorm configuration document.
type Config struct {
	Connection ConnectionConfig `koanf:"connection"`
	Log        LogConfig        `koanf:"log"`
	Models     []ModelConfig    `koanf:"models" validate:"dive"`
}

// ConnectionConfig describes the primary database, its replicas and pool.
type ConnectionConfig struct {
	Name     string   `koanf:"name" validate:"required"`
	Driver   string   `koanf:"driver" validate:"required,oneof=mysql postgres postgresql pgx sqlite3 sqlite"`
	DSN      string   `koanf:"dsn" validate:"required"`
	Replicas []string `koanf:"replicas" validate:"dive,required"`

	// LoadBalancer picks the replica of each read: round_robin or random.
	LoadBalancer string `koanf:"load_balancer" validate:"omitempty,oneof=round_robin random"`

	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"gte=0"`

	StatementCacheSize  int           `koanf:"statement_cache_size" validate:"gte=0"`
	SlowThreshold       time.Duration `koanf:"slow_threshold" validate:"gte=0"`
	DatabaseValidations bool          `koanf:"database_validations"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error dpanic panic fatal"`
}

// ModelConfig declares one model. Relation maps are keyed by relation name.
type ModelConfig struct {
	Name       string   `koanf:"name" validate:"required"`
	Table      string   `koanf:"table"`
	PrimaryKey string   `koanf:"primary_key"`
	Columns    []string `koanf:"columns"`

	// MorphTo maps a relation name to the base of its `_id`/`_type` columns.
	MorphTo          map[string]string                 `koanf:"morph_to" validate:"dive,required"`
	MorphOneOrMany   map[string]MorphOneOrManyConfig   `koanf:"morph_one_or_many" validate:"dive"`
	MorphManyThrough map[string]MorphManyThroughConfig `koanf:"morph_many_through" validate:"dive"`

	HasMany       map[string]HasManyConfig       `koanf:"has_many" validate:"dive"`
	HasOne        map[string]HasManyConfig       `koanf:"has_one" validate:"dive"`
	BelongsTo     map[string]BelongsToConfig     `koanf:"belongs_to" validate:"dive"`
	BelongsToMany map[string]BelongsToManyConfig `koanf:"belongs_to_many" validate:"dive"`
}

type MorphOneOrManyConfig struct {
	Model  string `koanf:"model" validate:"required"`
	Column string `koanf:"column" validate:"required"`
	Single bool   `koanf:"single"`
}

type MorphManyThroughConfig struct {
	Model            string `koanf:"model" validate:"required"`
	Column           string `koanf:"column" validate:"required"`
	Pivot            string `koanf:"pivot" validate:"required"`
	ForeignOrFarKey  string `koanf:"foreign_or_far_key" validate:"required"`
	PolymorphicStart bool   `koanf:"polymorphic_start"`
}

// HasManyConfig is shared by has_many and has_one declarations.
type HasManyConfig struct {
	Model              string `koanf:"model" validate:"required"`
	PropertyForeignKey string `koanf:"property_foreign_key"`
	LocalKey           string `koanf:"local_key"`
}

type BelongsToConfig struct {
	Model             string `koanf:"model" validate:"required"`
	LocalForeignKey   string `koanf:"local_foreign_key"`
	ForeignColumnName string `koanf:"foreign_column_name"`
}

type BelongsToManyConfig struct {
	Model                  string `koanf:"model" validate:"required"`
	IntermediateTable      string `koanf:"intermediate_table" validate:"required"`
	IntermediateOwnerID    string `koanf:"intermediate_owner_id"`
	IntermediatePropertyID string `koanf:"intermediate_property_id"`
	PropertyLookupColumn   string `koanf:"property_lookup_column"`
}

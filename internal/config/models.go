package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rezakhademix/zorm"
	"go.uber.org/zap"
)

// ModelDefs converts the declared models into zorm definitions.
func (c *Config) ModelDefs() []*zorm.ModelDef {
	defs := make([]*zorm.ModelDef, 0, len(c.Models))
	for _, m := range c.Models {
		defs = append(defs, m.define())
	}
	return defs
}

func (m ModelConfig) define() *zorm.ModelDef {
	return zorm.Define(m.Name, func(c *zorm.ModelConfigurator) {
		if m.Table != "" {
			c.Table(m.Table)
		}
		if m.PrimaryKey != "" {
			c.PrimaryKey(m.PrimaryKey)
		}
		c.Columns(m.Columns...)

		for name, column := range m.MorphTo {
			c.MorphTo(name, column)
		}
		for name, r := range m.MorphOneOrMany {
			c.MorphOneOrMany(name, zorm.MorphOneOrMany{Model: r.Model, Column: r.Column, Single: r.Single})
		}
		for name, r := range m.MorphManyThrough {
			c.MorphManyThrough(name, zorm.MorphManyThrough{
				Model:            r.Model,
				Column:           r.Column,
				Pivot:            r.Pivot,
				ForeignOrFarKey:  r.ForeignOrFarKey,
				PolymorphicStart: r.PolymorphicStart,
			})
		}

		for name, r := range m.HasMany {
			c.HasMany(name, zorm.HasManyConfig{Model: r.Model, PropertyForeignKey: r.PropertyForeignKey, LocalKey: r.LocalKey})
		}
		for name, r := range m.HasOne {
			c.HasOne(name, zorm.HasOneConfig{Model: r.Model, PropertyForeignKey: r.PropertyForeignKey, LocalKey: r.LocalKey})
		}
		for name, r := range m.BelongsTo {
			c.BelongsTo(name, zorm.BelongsToConfig{
				Model:             r.Model,
				LocalForeignKey:   r.LocalForeignKey,
				ForeignColumnName: r.ForeignColumnName,
			})
		}
		for name, r := range m.BelongsToMany {
			c.BelongsToMany(name, zorm.BelongsToManyConfig{
				Model:                  r.Model,
				IntermediateTable:      r.IntermediateTable,
				IntermediateOwnerID:    r.IntermediateOwnerID,
				IntermediatePropertyID: r.IntermediatePropertyID,
				PropertyLookupColumn:   r.PropertyLookupColumn,
			})
		}
	})
}

// DBConfig returns the pool settings of the connection.
func (c ConnectionConfig) DBConfig() *zorm.DBConfig {
	return &zorm.DBConfig{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

func (c ConnectionConfig) loadBalancer() zorm.LoadBalancer {
	if c.LoadBalancer == "random" {
		return zorm.RandomLoadBalancer{}
	}
	return &zorm.RoundRobinLoadBalancer{}
}

// Connect opens the primary and every replica, then binds the declared
// models to them. The returned close function closes every opened database.
func Connect(ctx context.Context, cfg *Config, logger *zap.Logger) (*zorm.Connection, func() error, error) {
	cc := cfg.Connection

	var opened []*sql.DB
	closeAll := func() error {
		var errs []error
		for _, db := range opened {
			errs = append(errs, db.Close())
		}
		return errors.Join(errs...)
	}

	primary, dialect, err := zorm.Open(ctx, cc.Driver, cc.DSN, cc.DBConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", cc.Name, err)
	}
	opened = append(opened, primary)

	replicas := make([]*sql.DB, 0, len(cc.Replicas))
	for i, dsn := range cc.Replicas {
		replica, _, err := zorm.Open(ctx, cc.Driver, dsn, cc.DBConfig())
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("failed to open replica %d of %s: %w", i, cc.Name, err)
		}
		opened = append(opened, replica)
		replicas = append(replicas, replica)
	}

	conn, err := zorm.NewConnection(ctx, zorm.ConnectionConfig{
		Name:                cc.Name,
		DB:                  primary,
		Dialect:             dialect,
		Models:              cfg.ModelDefs(),
		Replicas:            replicas,
		LoadBalancer:        cc.loadBalancer(),
		Logger:              logger,
		SlowThreshold:       cc.SlowThreshold,
		StatementCacheSize:  cc.StatementCacheSize,
		DatabaseValidations: cc.DatabaseValidations,
	})
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}

	return conn, func() error {
		return errors.Join(conn.Close(), closeAll())
	}, nil
}

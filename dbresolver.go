package zorm

import (
	"database/sql"
	"math/rand/v2"
	"sync/atomic"
)

// DBResolver routes reads between a primary and its replicas.
type DBResolver struct {
	primary  *sql.DB
	replicas []*sql.DB
	lb       LoadBalancer
}

// LoadBalancer is an interface for selecting a replica from a pool.
type LoadBalancer interface {
	Next(replicas []*sql.DB) *sql.DB
}

// RoundRobinLoadBalancer distributes load across replicas using round-robin.
type RoundRobinLoadBalancer struct {
	counter uint64
}

// Next returns the next replica in round-robin order.
func (r *RoundRobinLoadBalancer) Next(replicas []*sql.DB) *sql.DB {
	if len(replicas) == 0 {
		return nil
	}
	if len(replicas) == 1 {
		return replicas[0]
	}

	idx := atomic.AddUint64(&r.counter, 1) - 1
	return replicas[idx%uint64(len(replicas))]
}

// RandomLoadBalancer picks a replica uniformly at random.
type RandomLoadBalancer struct{}

func (RandomLoadBalancer) Next(replicas []*sql.DB) *sql.DB {
	if len(replicas) == 0 {
		return nil
	}
	return replicas[rand.IntN(len(replicas))]
}

// NewDBResolver builds a resolver. lb defaults to round-robin.
func NewDBResolver(primary *sql.DB, replicas []*sql.DB, lb LoadBalancer) *DBResolver {
	if lb == nil {
		lb = &RoundRobinLoadBalancer{}
	}
	return &DBResolver{primary: primary, replicas: replicas, lb: lb}
}

// Primary returns the primary database connection.
func (r *DBResolver) Primary() *sql.DB {
	return r.primary
}

// Replica returns a replica based on the load balancer strategy, or the
// primary when no replica is configured.
func (r *DBResolver) Replica() *sql.DB {
	if len(r.replicas) == 0 {
		return r.primary
	}
	if db := r.lb.Next(r.replicas); db != nil {
		return db
	}
	return r.primary
}

// HasReplicas returns true if replicas are configured.
func (r *DBResolver) HasReplicas() bool {
	return len(r.replicas) > 0
}

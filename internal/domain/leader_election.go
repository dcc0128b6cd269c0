package domain

import "context"

// LeaderElectionManager coordinates which node runs singleton background work,
// such as the retention sweep, when several orchestrator nodes share a store.
type LeaderElectionManager interface {
	Campaign(ctx context.Context) (<-chan struct{}, error)
	Resign(ctx context.Context) error
	IsLeader() bool
}

package tasks

import (
	"context"

	"github.com/lysyi3m/insightpress/app/news"
)

// ItemCollector produces ranking items from a single upstream source.
// hn.Collector implements it.
type ItemCollector interface {
	Run(ctx context.Context) ([]news.Item, error)
}

// PoolInterface runs a batch of collection tasks to completion.
//
//	pool := NewPool(workerCount)
//	summary := pool.Run(ctx, []TaskInterface{NewCollectHNTask(...), NewCollectFeedTask(...)})
type PoolInterface interface {
	Run(ctx context.Context, batch []TaskInterface) Summary
}

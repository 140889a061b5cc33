package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type CollectHNTask struct {
	Task
	collector  ItemCollector
	collection *Collection
}

func NewCollectHNTask(sourceName string, collector ItemCollector, collection *Collection) *CollectHNTask {
	return &CollectHNTask{
		Task:       NewTask(TaskTypeCollectHN, sourceName),
		collector:  collector,
		collection: collection,
	}
}

func (t *CollectHNTask) Execute(ctx context.Context) error {
	items, err := t.collector.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect stories: %w", err)
	}

	t.collection.Set(t.SourceName, items)

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"collected", len(items))

	return nil
}

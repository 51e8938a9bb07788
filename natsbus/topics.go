package natsbus

import "fmt"

// Topic patterns.

// TopicRunEvents is the subject carrying the events of one run.
func TopicRunEvents(runID string) string {
	return fmt.Sprintf("docmesh.runs.%s.events", runID)
}

const (
	// TopicRunEventsAll matches the events of every run.
	TopicRunEventsAll = "docmesh.runs.*.events"
	// TopicBucketEvents is the default subject MinIO publishes bucket
	// notifications to.
	TopicBucketEvents = "docmesh.bucket.events"
	// QueueIngest is the queue group of ingestion subscribers.
	QueueIngest = "docmesh-ingest"
)

// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "hv-search-go/internal/model"

// ReindexTask represents the data structure for a domain reindex job.
type ReindexTask struct {
	Domain      model.Domain `json:"domain"`
	RequestedBy string       `json:"requested_by"`
}

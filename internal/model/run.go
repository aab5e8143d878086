// Package model defines the run records and search types exchanged with the
// remote tracking service.
//
// Run records are owned by the tracking service. Once fetched they are treated
// as immutable values; nothing in this module edits a Run in place.
package model

// ParentRunTagKey is the tag whose value names a run's logical parent.
const ParentRunTagKey = "mlflow.parentRunId"

// LifecycleStage is the visibility classification of a run.
type LifecycleStage string

const (
	LifecycleActive  LifecycleStage = "active"
	LifecycleDeleted LifecycleStage = "deleted"
)

// RunStatus is the execution status reported by the tracking service.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusScheduled RunStatus = "SCHEDULED"
	RunStatusFinished  RunStatus = "FINISHED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusKilled    RunStatus = "KILLED"
)

// Run is one tracked execution.
type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

// RunInfo holds run metadata. StartTime and EndTime are unix milliseconds.
type RunInfo struct {
	RunID          string         `json:"run_id"`
	RunUUID        string         `json:"run_uuid,omitempty"`
	RunName        string         `json:"run_name,omitempty"`
	ExperimentID   string         `json:"experiment_id"`
	UserID         string         `json:"user_id,omitempty"`
	Status         RunStatus      `json:"status,omitempty"`
	StartTime      int64          `json:"start_time,omitempty"`
	EndTime        int64          `json:"end_time,omitempty"`
	ArtifactURI    string         `json:"artifact_uri,omitempty"`
	LifecycleStage LifecycleStage `json:"lifecycle_stage,omitempty"`
}

// RunData holds the key/value payload of a run.
type RunData struct {
	Metrics []Metric `json:"metrics,omitempty"`
	Params  []Param  `json:"params,omitempty"`
	Tags    []RunTag `json:"tags,omitempty"`
}

// Metric is the latest logged value of a metric.
type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Step      int64   `json:"step,omitempty"`
}

// Param is an immutable key/value pair set at run start.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RunTag is a mutable key/value pair. Keys are not guaranteed unique.
type RunTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ID returns the run identifier, falling back to the deprecated run_uuid
// field for older servers.
func (r Run) ID() string {
	if r.Info.RunID != "" {
		return r.Info.RunID
	}
	return r.Info.RunUUID
}

// Tag returns the value of the first tag with the given key.
func (r Run) Tag(key string) (string, bool) {
	for _, t := range r.Data.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// IsDeleted reports whether the run sits in the deleted lifecycle stage.
func (r Run) IsDeleted() bool {
	return r.Info.LifecycleStage == LifecycleDeleted
}

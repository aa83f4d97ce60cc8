package entities

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Image tag names inside the shared application repository. The three
// sentinels are permanently protected from retention.
const (
	TagCurrent        = "current"
	TagRollbackSafety = "rollback-safety"
	TagPreRollback    = "pre-rollback"

	// TagRestartOnly marks history entries for restart-without-rebuild runs.
	TagRestartOnly = "restart-only"

	// BuildTagLayout is the timestamp form applied to every fresh build.
	BuildTagLayout = "20060102-150405"
)

var buildTagPattern = regexp.MustCompile(`^\d{8}-\d{6}$`)

// IsBuildTag reports whether tag is a timestamp-derived build tag, as opposed
// to a sentinel or a synthetic rollback/restart entry.
func IsBuildTag(tag string) bool {
	return buildTagPattern.MatchString(tag)
}

// BuildRecord is one entry of the append-only build history. Records are
// immutable once written.
type BuildRecord struct {
	ID                 uuid.UUID `json:"id"`
	Tag                string    `json:"tag"`
	Timestamp          time.Time `json:"timestamp"`
	CommitHash         string    `json:"commit_hash"`
	CommitSubject      string    `json:"commit_subject"`
	ImageID            string    `json:"image_id,omitempty"`
	Success            bool      `json:"success"`
	Error              string    `json:"error,omitempty"`
	DurationMs         int64     `json:"duration_ms"`
	TriggeredBy        string    `json:"triggered_by"`
	InstancesRestarted []string  `json:"instances_restarted"`
}

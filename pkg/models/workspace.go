package models

// Workspace is the raw workspace record returned by the Coder API.
// Timestamps are kept as raw strings; parsing happens where the values are
// consumed so that malformed timestamps surface as typed errors instead of
// zero times.
type Workspace struct {
	ID          string `json:"id"`
	Name        string `json:"workspace_name"`
	OwnerName   string `json:"workspace_owner_name"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	LatestBuild Build  `json:"latest_build"`
}

// Build is one provisioning transition of a workspace (create, start, delete).
type Build struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	UpdatedAt string     `json:"updated_at"`
	Resources []Resource `json:"resources"`
	Job       *BuildJob  `json:"job,omitempty"`
}

// BuildJob carries the provisioner-job status some API responses report
// instead of a build status.
type BuildJob struct {
	Status string `json:"status"`
}

// Resource is a provisioned resource attached to a build.
type Resource struct {
	Name     string             `json:"name"`
	Metadata []ResourceMetadata `json:"metadata"`
}

type ResourceMetadata struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BuildLogEntry is one line of provisioning output.
type BuildLogEntry struct {
	Output   string `json:"output"`
	LogLevel string `json:"log_level"`
	Stage    string `json:"stage"`
}

// State returns the build status of the workspace, falling back to the
// provisioner-job status when the build status is empty.
func (w *Workspace) State() string {
	if w.LatestBuild.Status != "" {
		return w.LatestBuild.Status
	}
	if w.LatestBuild.Job != nil {
		return w.LatestBuild.Job.Status
	}
	return ""
}

package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// File describes an uploaded recording.
type File struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`
	CreatedAt        string `json:"created_at"`
	TargetStage      string `json:"target_stage,omitempty"`
}

// Asset describes one artifact of a file.
type Asset struct {
	ID            string `json:"id"`
	FileID        string `json:"file_id"`
	ParentAssetID string `json:"parent_asset_id,omitempty"`
	AssetType     string `json:"asset_type"`
	FilePath      string `json:"file_path"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// FileSummary is the per-file status row shown in listings.
type FileSummary struct {
	File
	HasOriginal      bool    `json:"has_original"`
	HasStems         bool    `json:"has_stems"`
	HasMidi          bool    `json:"has_midi"`
	HasPdf           bool    `json:"has_pdf"`
	CurrentStatus    string  `json:"current_status,omitempty"`
	CurrentAssetType string  `json:"current_asset_type,omitempty"`
	CurrentProgress  float64 `json:"current_progress,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	Assets           []Asset `json:"assets"`
}

// StageRequest is the body of a stage request.
type StageRequest struct {
	Stage string `json:"stage"`
}

// StageResult reports what a stage request enqueued.
type StageResult struct {
	FileID    string `json:"file_id"`
	Stage     string `json:"stage"`
	Action    string `json:"action"`
	AssetType string `json:"asset_type,omitempty"`
	AssetID   string `json:"asset_id,omitempty"`
}

// CancelResult reports what a cancel touched.
type CancelResult struct {
	FileID    string `json:"file_id"`
	Deleted   int64  `json:"deleted"`
	Cancelled int64  `json:"cancelled"`
}

// ExportRequest is the body of an export request.
type ExportRequest struct {
	Destination string `json:"destination"`
}

// ExportResult reports where an asset was exported.
type ExportResult struct {
	AssetID  string `json:"asset_id"`
	Location string `json:"location"`
}

// WorkerStatus summarizes the worker loop.
type WorkerStatus struct {
	Running    bool           `json:"running"`
	Processed  int            `json:"processed"`
	LastError  string         `json:"last_error,omitempty"`
	CurrentJob *Job           `json:"current_job,omitempty"`
	LastJob    *Job           `json:"last_job,omitempty"`
	AssetStats map[string]int `json:"asset_stats"`
}

// Job describes a running or finished worker job.
type Job struct {
	AssetID   string  `json:"asset_id"`
	FileID    string  `json:"file_id"`
	AssetType string  `json:"asset_type"`
	StartedAt string  `json:"started_at"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
}

// DependencyStatus captures availability of an external tool.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// DaemonStatus aggregates runtime information.
type DaemonStatus struct {
	PID          int                `json:"pid"`
	Version      string             `json:"version,omitempty"`
	StartedAt    string             `json:"started_at"`
	DatabasePath string             `json:"database_path"`
	Recovered    int64              `json:"recovered"`
	Worker       WorkerStatus       `json:"worker"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Subscribers  int                `json:"subscribers"`
	Health       *DatabaseHealth    `json:"health,omitempty"`
}

// DatabaseHealth reports store integrity.
type DatabaseHealth struct {
	SizeBytes    int64  `json:"size_bytes"`
	Files        int    `json:"files"`
	Integrity    string `json:"integrity"`
	MissingFiles int    `json:"missing_files"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

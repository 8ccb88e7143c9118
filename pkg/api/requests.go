package api

// InitializeRequest creates a new session and its tree.
type InitializeRequest struct {
	TreeName string `json:"tree_name" binding:"required"`
}

// RunRequest starts a task running one or more phases against a session.
type RunRequest struct {
	SessionID string   `json:"session_id" binding:"required"`
	Phases    []string `json:"phases" binding:"required,min=1"`

	// Resume fields are optional; when TreePicklePath is set the task
	// resumes from that checkpoint instead of the session's live tree.
	TreePicklePath  string `json:"tree_pickle_path,omitempty"`
	ResumePhase     string `json:"resume_phase,omitempty"`
	ResumeIteration int    `json:"resume_iteration,omitempty"`
}

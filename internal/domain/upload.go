package domain

import "time"

// UploadRecord remembers the file a locally uploaded book was created from.
type UploadRecord struct {
	UploadID   string    `json:"upload_id"`
	BookID     string    `json:"book_id"`
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	SourceType string    `json:"source_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobStatus is the state of an ingestion job.
type JobStatus string

// Job states.
const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// MaxJobAttempts bounds retries of a failing ingestion job.
const MaxJobAttempts = 3

// IngestionJob is a file waiting to be imported from the drop folder.
type IngestionJob struct {
	JobID     string    `json:"job_id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	BookID    string    `json:"book_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fail records a failed attempt. The job stays pending until attempts run out.
func (j *IngestionJob) Fail(err error, now time.Time) {
	j.Attempts++
	j.Error = err.Error()
	j.UpdatedAt = now
	if j.Attempts >= MaxJobAttempts {
		j.Status = JobFailed
	}
}

// SameFile reports whether the job was created for the file as it is now.
func (j *IngestionJob) SameFile(path string, size int64, modTime time.Time) bool {
	return j.Path == path && j.Size == size && j.ModTime.Equal(modTime)
}

// Complete marks the job done.
func (j *IngestionJob) Complete(bookID string, now time.Time) {
	j.Attempts++
	j.Status = JobDone
	j.BookID = bookID
	j.Error = ""
	j.UpdatedAt = now
}

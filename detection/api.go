package detection

type AcquireSlotRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// AcquireSlotResponse names where the image bytes go. ObjectKey is what
// Submit refers to once the upload finished.
type AcquireSlotResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

type SubmitRequest struct {
	ObjectKey string `json:"objectKey"`
	Filename  string `json:"filename"`
}

type SubmitResponse struct {
	JobID string `json:"jobId"`
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

/*
The shape changes somewhat depending on Status:
If Status == done:

	Score holds the AI probability (0-100) and Result the final label and confidence.

If Status == failed:

	Error carries the provider's reason, Score and Result are empty.

Otherwise only Status is meaningful.
*/
type JobStatusResponse struct {
	Status JobStatus  `json:"status"`
	Score  *float64   `json:"score,omitempty"`
	Result *JobDetail `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

type JobDetail struct {
	FinalResult string   `json:"finalResult"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

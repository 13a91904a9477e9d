package dto

// UploadResponse describes a stored submission file. Its fields line up with
// SubmissionFileInput so clients can attach the result to a submission as-is.
type UploadResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
	Checksum string `json:"checksum"`
}

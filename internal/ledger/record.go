package ledger

// Status is the lifecycle state of a build record.
type Status string

const (
	StatusProcessing  Status = "processing"
	StatusCloning     Status = "cloning"
	StatusDownloading Status = "downloading"
	StatusBuilding    Status = "building"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transitions occur from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Record is one build request and its current state. The JSON field names
// match the persisted ledger file and the API payloads.
type Record struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Status      Status `json:"status"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Filename    string `json:"filename,omitempty"`
	APKSize     int64  `json:"apk_size,omitempty"`
	Message     string `json:"message,omitempty"`
	Timestamp   string `json:"timestamp"`
	IP          string `json:"ip,omitempty"`
}

// TimestampFormat is the layout used for record timestamps, kept compatible
// with the existing ledger files.
const TimestampFormat = "2006-01-02 15:04:05"

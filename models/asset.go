package models

// Asset locations. A name is unique within its location.
const (
	LocationUploaded = "uploaded"
	LocationScraped  = "scraped"
)

// DataAsset describes one stored file: an administrator upload or a
// scraper output.
type DataAsset struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Type       string `json:"type"`
	UploadDate string `json:"uploadDate"`
	Location   string `json:"location"`
}

// ProcessResult is the file-processing worker's verdict on an upload.
// A failed processing run does not fail the upload itself.
type ProcessResult struct {
	Processed bool   `json:"processed"`
	Type      string `json:"type,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Error     string `json:"error,omitempty"`
}

// IndexState is the aggregate shape reported by the reindex worker.
type IndexState struct {
	Chunks int `json:"chunks"`
	Files  int `json:"files"`
}

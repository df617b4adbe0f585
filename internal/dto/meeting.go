package dto

type UploadResponse struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	FileName string  `json:"file_name"`
	FileURL  string  `json:"file_url"`
	FilePath string  `json:"file_path"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
}

type ProgressEvent struct {
	Transferred int64   `json:"transferred"`
	Total       int64   `json:"total"`
	Percent     float64 `json:"percent"`
}

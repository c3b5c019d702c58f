package models

// MediaInfo is the metadata a prober reports for one file.
type MediaInfo struct {
	Path      string  `json:"path"`
	Duration  float64 `json:"duration"` // seconds
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FPS       float64 `json:"fps"`
	SizeBytes int64   `json:"size_bytes"`
	HasVideo  bool    `json:"has_video"`
	HasAudio  bool    `json:"has_audio"`
}

// SizeMB returns the file size in mebibytes.
func (m *MediaInfo) SizeMB() float64 {
	return float64(m.SizeBytes) / (1024 * 1024)
}

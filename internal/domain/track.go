package domain

// TrackTags holds the metadata embedded in an audio file.
type TrackTags struct {
	Title    string
	Artist   string
	Album    string
	CoverArt *string // data URI, nil when the file carries no picture
}

// TrackDescriptor is one entry of the catalog listing.
type TrackDescriptor struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	AudioURL string  `json:"audioUrl"`
	CoverArt *string `json:"coverArt"`
}

// ChapterMark is a named point in time within a track.
type ChapterMark struct {
	StartTime float64 `json:"start_time"`
	Title     string  `json:"title"`
}

// DefaultChapters is what a track without a sidecar exposes.
func DefaultChapters() []ChapterMark {
	return []ChapterMark{{StartTime: 0, Title: "Main"}}
}

// AcquisitionResult is returned once per successful acquisition.
type AcquisitionResult struct {
	StatusCode int           `json:"status"`
	Chapters   []ChapterMark `json:"chapters"`
}

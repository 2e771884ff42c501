package domain

// VideoChapter is a chapter as reported by the remote source.
type VideoChapter struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// VideoInfo is the metadata returned by probing a remote reference.
type VideoInfo struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Uploader   string         `json:"uploader"`
	Channel    string         `json:"channel"`
	Thumbnail  string         `json:"thumbnail"`
	WebpageURL string         `json:"webpage_url"`
	UploadDate string         `json:"upload_date"`
	Duration   float64        `json:"duration"`
	Chapters   []VideoChapter `json:"chapters"`
}

// Artist returns the best available name for the uploader.
func (v *VideoInfo) Artist() string {
	if v.Uploader != "" {
		return v.Uploader
	}
	return v.Channel
}

// Year returns the upload year, or an empty string when unknown.
func (v *VideoInfo) Year() string {
	if len(v.UploadDate) >= 4 {
		return v.UploadDate[:4]
	}
	return ""
}

// ChapterMarks maps the remote chapters to chapter marks, dropping end times.
func (v *VideoInfo) ChapterMarks() []ChapterMark {
	marks := make([]ChapterMark, 0, len(v.Chapters))
	for _, ch := range v.Chapters {
		marks = append(marks, ChapterMark{StartTime: ch.StartTime, Title: ch.Title})
	}
	return marks
}

package audio

import (
	"context"
)

// Transcoder converts a source audio file into the library format.
type Transcoder interface {
	Transcode(ctx context.Context, p TranscodeParams) error
}

type TranscodeParams struct {
	InputPath    string
	OutputPath   string // final path; its extension selects the codec
	CoverArtPath string // optional

	Title   string
	Artist  string
	Album   string
	Year    string
	Comment string
}

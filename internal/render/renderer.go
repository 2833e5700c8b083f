package render

import "context"

// Request carries everything needed to produce one clip. Voice, Background
// and CustomStory are passed through as loosely-typed configuration the same
// way they arrive on the wire.
type Request struct {
	JobID         string
	Subreddit     string
	IsCliffhanger bool
	Voice         map[string]any
	Background    map[string]any
	CustomStory   map[string]any

	// OnProgress, when set, receives illustrative progress estimates while
	// the render runs. Values are coarse checkpoints, not measurements.
	OnProgress func(percent int)
}

// Artifact describes a finished clip on disk.
type Artifact struct {
	Path   string
	Format string
	Bytes  int64
}

// Renderer turns a request into a finished artifact file.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Artifact, error)
}

func (r Request) progress(percent int) {
	if r.OnProgress != nil {
		r.OnProgress(percent)
	}
}

package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"server/internal/storage"
)

// ClipRenderer produces the placeholder clip: a solid background frame with
// the story text composited on top, repeated across a handful of frames and
// packed into an MP4-flavored container. A nil story provider renders the
// background only.
type ClipRenderer struct {
	name    string
	stories StoryProvider
	store   *storage.FileStore
	logger  zerolog.Logger
}

const (
	clipWidth     = 720
	clipHeight    = 1280
	clipFrames    = 8
	textMaxColumn = 44
)

func NewClipRenderer(name string, stories StoryProvider, store *storage.FileStore, logger zerolog.Logger) *ClipRenderer {
	return &ClipRenderer{name: name, stories: stories, store: store, logger: logger}
}

// Name identifies the renderer in fallback-chain logs.
func (r *ClipRenderer) Name() string {
	return r.name
}

func (r *ClipRenderer) Render(ctx context.Context, req Request) (*Artifact, error) {
	story := storyFromCustom(req)
	if story == nil && r.stories != nil {
		generated, err := r.stories.GenerateStory(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generate story: %w", err)
		}
		story = generated
	}
	req.progress(40)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := backgroundColor(req)
	frames := make([][]byte, 0, clipFrames)
	for i := 0; i < clipFrames; i++ {
		frame, err := renderFrame(base, story, i)
		if err != nil {
			return nil, fmt.Errorf("render frame %d: %w", i, err)
		}
		frames = append(frames, frame)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	req.progress(70)

	data := encodeClip(frames)
	key := fmt.Sprintf("video_%s.mp4", req.JobID)
	path, err := r.store.Write(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("persist clip: %w", err)
	}
	req.progress(90)

	r.logger.Debug().
		Str("job_id", req.JobID).
		Str("renderer", r.name).
		Int("bytes", len(data)).
		Msg("render: clip written")

	return &Artifact{Path: path, Format: "video/mp4", Bytes: int64(len(data))}, nil
}

// backgroundColor honors an explicit hex color in the background config and
// otherwise derives a stable color from the request.
func backgroundColor(req Request) color.RGBA {
	if hex, ok := req.Background["color"].(string); ok {
		if c, err := parseHexColor(hex); err == nil {
			return c
		}
	}
	theme, _ := req.Background["theme"].(string)
	return colorFromSeed(fmt.Sprintf("%s|%s", req.Subreddit, theme))
}

func renderFrame(base color.RGBA, story *Story, index int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, clipWidth, clipHeight))
	shade := dim(base, uint8(index*4))
	draw.Draw(img, img.Bounds(), &image.Uniform{shade}, image.Point{}, draw.Src)

	if story != nil {
		drawStory(img, story)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawStory composites the wrapped story text onto the frame, vertically
// centered.
func drawStory(img *image.RGBA, story *Story) {
	face := basicfont.Face7x13
	lines := wrapText(story.Title, textMaxColumn)
	if story.Title != "" {
		lines = append(lines, "")
	}
	lines = append(lines, wrapText(story.Body, textMaxColumn)...)

	lineHeight := face.Metrics().Height.Ceil() + 4
	startY := (clipHeight - lineHeight*len(lines)) / 2
	if startY < lineHeight {
		startY = lineHeight
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
	}
	for i, line := range lines {
		width := drawer.MeasureString(line).Ceil()
		x := (clipWidth - width) / 2
		if x < 0 {
			x = 0
		}
		drawer.Dot = fixed.P(x, startY+i*lineHeight)
		drawer.DrawString(line)
	}
}

func wrapText(text string, column int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > column {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}

// encodeClip packs the PNG frames into ftyp+mdat boxes so the artifact is
// recognizably MP4-shaped. The frames inside mdat are length-prefixed.
func encodeClip(frames [][]byte) []byte {
	var buf bytes.Buffer

	ftyp := []byte("ftypisom\x00\x00\x02\x00isomiso2mp41")
	writeUint32(&buf, uint32(len(ftyp)+4))
	buf.Write(ftyp)

	var mdat bytes.Buffer
	for _, frame := range frames {
		writeUint32(&mdat, uint32(len(frame)))
		mdat.Write(frame)
	}
	writeUint32(&buf, uint32(mdat.Len()+8))
	buf.WriteString("mdat")
	buf.Write(mdat.Bytes())

	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func colorFromSeed(seed string) color.RGBA {
	sum := sha256.Sum256([]byte(seed))
	// Cap channels so white text stays readable on the background.
	return color.RGBA{
		R: sum[0] % 160,
		G: sum[1] % 160,
		B: sum[2] % 160,
		A: 0xFF,
	}
}

func dim(c color.RGBA, by uint8) color.RGBA {
	sub := func(v, d uint8) uint8 {
		if v < d {
			return 0
		}
		return v - d
	}
	return color.RGBA{R: sub(c.R, by), G: sub(c.G, by), B: sub(c.B, by), A: c.A}
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

var _ Renderer = (*ClipRenderer)(nil)

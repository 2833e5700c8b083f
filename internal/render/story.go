package render

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// Story is the narration composited into a clip.
type Story struct {
	Title string
	Body  string
}

// StoryProvider produces a short story for a request.
type StoryProvider interface {
	GenerateStory(ctx context.Context, req Request) (*Story, error)
}

// storyFromCustom extracts a caller-supplied story from the request, if any.
func storyFromCustom(req Request) *Story {
	if req.CustomStory == nil {
		return nil
	}
	title, _ := req.CustomStory["title"].(string)
	body, _ := req.CustomStory["story"].(string)
	if body == "" {
		body, _ = req.CustomStory["body"].(string)
	}
	if strings.TrimSpace(title) == "" && strings.TrimSpace(body) == "" {
		return nil
	}
	return &Story{Title: strings.TrimSpace(title), Body: strings.TrimSpace(body)}
}

// TemplateStoryProvider builds a deterministic story from the request alone,
// so the pipeline stays operational without a text-generation API key.
type TemplateStoryProvider struct{}

func NewTemplateStoryProvider() *TemplateStoryProvider {
	return &TemplateStoryProvider{}
}

var storyOpenings = []string{
	"Nobody believed me when I first posted this.",
	"I still think about that night more than I should.",
	"It started with a knock on the door at 3 AM.",
	"Everyone told me I was overreacting. I wasn't.",
	"This happened two summers ago and I finally have to tell someone.",
}

var storyClosings = []string{
	"I never found out who it was.",
	"To this day the door stays locked.",
	"That was the last time I ever went back.",
	"Some questions are better left unanswered.",
}

func (p *TemplateStoryProvider) GenerateStory(ctx context.Context, req Request) (*Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subreddit := strings.TrimSpace(req.Subreddit)
	seed := storySeed(subreddit, req.Voice)
	opening := storyOpenings[int(seed%uint64(len(storyOpenings)))]

	var b strings.Builder
	b.WriteString(opening)
	b.WriteString(fmt.Sprintf(" It was the kind of thing you only read about on r/%s.", subreddit))
	b.WriteString(" What happened next changed everything for me.")
	if req.IsCliffhanger {
		b.WriteString(" And just when I thought it was over... part two coming soon.")
	} else {
		b.WriteString(" " + storyClosings[int((seed>>8)%uint64(len(storyClosings)))])
	}

	return &Story{
		Title: fmt.Sprintf("A story from r/%s", subreddit),
		Body:  b.String(),
	}, nil
}

func storySeed(parts ...any) uint64 {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return binary.BigEndian.Uint64(hasher.Sum(nil)[:8])
}

var _ StoryProvider = (*TemplateStoryProvider)(nil)

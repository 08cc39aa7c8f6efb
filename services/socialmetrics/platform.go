package socialmetrics

import (
	"context"

	"ugc-marketplace/services/application"
	"ugc-marketplace/services/tracking"
)

//go:generate mockgen -source=platform.go -destination=mock_platform.go -package=socialmetrics

// PostMetrics are the cumulative counters and metadata of one post.
type PostMetrics struct {
	ViewCount    int64    `json:"view_count"`
	LikeCount    int64    `json:"like_count"`
	CommentCount int64    `json:"comment_count"`
	ShareCount   int64    `json:"share_count"`
	Caption      string   `json:"caption"`
	Hashtags     []string `json:"hashtags"`
}

// Platform fetches post metrics from one social network.
//
// Fetch returns (nil, nil) when the post does not exist and an error for
// transport or vendor failures, so callers can tell the two apart.
type Platform interface {
	Name() string
	Reference(app *application.Application) string
	Fetch(ctx context.Context, ref string) (*PostMetrics, error)
	IsAuthentic(tag string, m *PostMetrics) bool
}

// Registry is the ordered set of platforms a reconciliation run queries.
type Registry struct {
	platforms []Platform
}

func NewRegistry(platforms ...Platform) *Registry {
	return &Registry{platforms: platforms}
}

func (r *Registry) Platforms() []Platform {
	return r.platforms
}

func (r *Registry) Lookup(name string) (Platform, bool) {
	for _, p := range r.platforms {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// tagCheck is shared by platforms whose posts expose caption and hashtags.
type tagCheck struct{}

func (tagCheck) IsAuthentic(tag string, m *PostMetrics) bool {
	if m == nil {
		return false
	}
	return tracking.IsAuthentic(tag, m.Caption, m.Hashtags)
}

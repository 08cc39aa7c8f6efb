package socialmetrics

import (
	"context"
	"net/url"

	"ugc-marketplace/services/application"
)

const PlatformInstagram = "instagram"

type instagramPost struct {
	Data *struct {
		PlayCount    int64    `json:"play_count"`
		ViewCount    int64    `json:"video_view_count"`
		LikeCount    int64    `json:"like_count"`
		CommentCount int64    `json:"comment_count"`
		ReshareCount int64    `json:"reshare_count"`
		Caption      string   `json:"caption"`
		Hashtags     []string `json:"hashtags"`
	} `json:"data"`
}

type Instagram struct {
	tagCheck
	client *Client
}

func NewInstagram(client *Client) *Instagram {
	return &Instagram{client: client}
}

func (*Instagram) Name() string { return PlatformInstagram }

func (*Instagram) Reference(app *application.Application) string {
	return app.InstagramReference()
}

func (p *Instagram) Fetch(ctx context.Context, ref string) (*PostMetrics, error) {
	var body instagramPost
	found, err := p.client.GetJSON(ctx, "/v1/instagram/post", url.Values{"url": {ref}}, &body)
	if err != nil || !found || body.Data == nil {
		return nil, err
	}

	d := body.Data
	views := d.PlayCount
	if views == 0 {
		views = d.ViewCount
	}

	hashtags := d.Hashtags
	if len(hashtags) == 0 {
		hashtags = ExtractHashtags(d.Caption)
	}

	return &PostMetrics{
		ViewCount:    views,
		LikeCount:    d.LikeCount,
		CommentCount: d.CommentCount,
		ShareCount:   d.ReshareCount,
		Caption:      d.Caption,
		Hashtags:     hashtags,
	}, nil
}

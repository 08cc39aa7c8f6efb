package socialmetrics

import (
	"context"
	"net/url"

	"ugc-marketplace/services/application"
)

const PlatformTikTok = "tiktok"

type tiktokVideo struct {
	Data *struct {
		Desc  string `json:"desc"`
		Stats struct {
			PlayCount    int64 `json:"playCount"`
			DiggCount    int64 `json:"diggCount"`
			CommentCount int64 `json:"commentCount"`
			ShareCount   int64 `json:"shareCount"`
		} `json:"stats"`
		Challenges []struct {
			Title string `json:"title"`
		} `json:"challenges"`
	} `json:"data"`
}

type TikTok struct {
	tagCheck
	client *Client
}

func NewTikTok(client *Client) *TikTok {
	return &TikTok{client: client}
}

func (*TikTok) Name() string { return PlatformTikTok }

func (*TikTok) Reference(app *application.Application) string {
	return app.TikTokReference()
}

func (p *TikTok) Fetch(ctx context.Context, ref string) (*PostMetrics, error) {
	var body tiktokVideo
	found, err := p.client.GetJSON(ctx, "/v1/tiktok/video", url.Values{"url": {ref}}, &body)
	if err != nil || !found || body.Data == nil {
		return nil, err
	}

	d := body.Data
	hashtags := make([]string, 0, len(d.Challenges))
	for _, c := range d.Challenges {
		if c.Title != "" {
			hashtags = append(hashtags, c.Title)
		}
	}
	if len(hashtags) == 0 {
		hashtags = ExtractHashtags(d.Desc)
	}

	return &PostMetrics{
		ViewCount:    d.Stats.PlayCount,
		LikeCount:    d.Stats.DiggCount,
		CommentCount: d.Stats.CommentCount,
		ShareCount:   d.Stats.ShareCount,
		Caption:      d.Desc,
		Hashtags:     hashtags,
	}, nil
}

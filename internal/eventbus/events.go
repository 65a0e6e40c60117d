package eventbus

const (
	TypePublishSent    = "publish.sent"
	TypePublishFailed  = "publish.failed"
	TypeQuotaReached   = "publish.quota_reached"
	TypePublishIdle    = "publish.idle"
	TypeConfigReloaded = "config.reloaded"
)

// PublishEvent is the Data of every publish.* event.
type PublishEvent struct {
	Lang      string `json:"lang"`
	ArticleID int    `json:"article_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Today     int    `json:"today"`
	Quota     int    `json:"quota"`
	Reason    string `json:"reason,omitempty"`
}

package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type SocialMetricsRequest struct {
	TwitterConnected bool  `json:"twitter_connected"`
	Followers        int64 `json:"followers"`
	Engagement       int64 `json:"engagement"`

	DiscordConnected bool  `json:"discord_connected"`
	DiscordActivity  int64 `json:"discord_activity"`

	GithubConnected     bool  `json:"github_connected"`
	GithubContributions int64 `json:"github_contributions"`
}

func (req *SocialMetricsRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Followers, validation.Min(0)),
		validation.Field(&req.Engagement, validation.Min(0)),
		validation.Field(&req.DiscordActivity, validation.Min(0)),
		validation.Field(&req.GithubContributions, validation.Min(0)),
	)
}

type TrackTransactionRequest struct {
	User         string `json:"user" binding:"required"`
	Value        int64  `json:"value" binding:"required,min=0"`
	Counterparty string `json:"counterparty"`
	TxID         string `json:"tx_id" binding:"required"`
}

func (req *TrackTransactionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.User, validation.Required),
		validation.Field(&req.Value, validation.Min(0)),
		validation.Field(&req.TxID, validation.Required, validation.Length(1, 128)),
	)
}

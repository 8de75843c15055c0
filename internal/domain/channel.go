package domain

import "time"

// Subscription links a subscriber account to a channel account.
type Subscription struct {
	SubscriberID string    `json:"subscriber"`
	ChannelID    string    `json:"channel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChannelProfile is the public page of an account seen by a viewer.
type ChannelProfile struct {
	ID                        string `json:"_id"`
	Username                  string `json:"username"`
	Email                     string `json:"email"`
	FullName                  string `json:"fullName"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

// NewChannelProfile builds the profile of account with the given counts.
func NewChannelProfile(a *Account, subscribers, subscribedTo int64, isSubscribed bool) ChannelProfile {
	return ChannelProfile{
		ID:                        a.ID,
		Username:                  a.Username,
		Email:                     a.Email,
		FullName:                  a.FullName,
		AvatarURL:                 a.AvatarURL,
		CoverImageURL:             a.CoverImageURL,
		SubscribersCount:          subscribers,
		ChannelsSubscribedToCount: subscribedTo,
		IsSubscribed:              isSubscribed,
	}
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// TweetDetail caches the looked-up tweet for a market. One row per market;
// refreshes overwrite the row in place and a failed refresh never clears it.
type TweetDetail struct {
	ID              string         `gorm:"primaryKey;type:text" json:"id"`
	MarketID        string         `gorm:"type:text;uniqueIndex;not null" json:"marketId"`
	Text            string         `gorm:"type:text;not null" json:"text"`
	TweetCreatedAt  time.Time      `gorm:"type:timestamptz" json:"createdAt"`
	AuthorAvatarURL string         `gorm:"type:text" json:"authorAvatarUrl"`
	RawJSON         datatypes.JSON `gorm:"type:jsonb" json:"-"`
	FetchedAt       time.Time      `gorm:"type:timestamptz;not null" json:"fetchedAt"`
}

func (TweetDetail) TableName() string {
	return "tweet_details"
}

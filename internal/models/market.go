package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market is a tracked prediction market, optionally tied to a tweet.
// The numeric columns hold on-chain style big integers; decimal.Decimal
// keeps them exact and serializes them as quoted strings on the wire.
type Market struct {
	ID                 string          `gorm:"primaryKey;type:text" json:"id"`
	TweetID            *string         `gorm:"type:text;index" json:"tweetId,omitempty"`
	CollateralAmount   decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"collateralAmount"`
	YesShares          decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"yesShares"`
	NoShares           decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"noShares"`
	Chance             decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"chance"`
	SettlementDeadline decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"settlementDeadline"`
	CreatedAt          time.Time       `gorm:"type:timestamptz" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"type:timestamptz" json:"updatedAt"`
	TweetDetail        *TweetDetail    `gorm:"foreignKey:MarketID;references:ID;constraint:OnDelete:CASCADE" json:"tweetDetail,omitempty"`
}

func (Market) TableName() string {
	return "markets"
}

// HasTweet reports whether the market references an external tweet.
func (m *Market) HasTweet() bool {
	return m != nil && m.TweetID != nil && *m.TweetID != ""
}

package models

import "time"

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusQualified ReferralStatus = "qualified"
)

type Referral struct {
	ReferrerID  string         `json:"referrerId" bson:"referrer_id"`
	RefereeID   string         `json:"refereeId" bson:"_id"`
	Status      ReferralStatus `json:"status" bson:"status"`
	RewardCoins int64          `json:"rewardCoins" bson:"reward_coins"`
	CreatedAt   time.Time      `json:"createdAt" bson:"created_at"`
	QualifiedAt *time.Time     `json:"qualifiedAt,omitempty" bson:"qualified_at,omitempty"`
}

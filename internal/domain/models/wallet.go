package models

import "time"

type Wallet struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"user_id"`
	Balance   int64     `json:"balance" bson:"balance"`
	Currency  string    `json:"currency" bson:"currency"`
	VIPTier   string    `json:"vipTier" bson:"vip_tier"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

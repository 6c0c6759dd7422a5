package dtos

type BalanceResponse struct {
	UserID   string `json:"userId"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	VIPTier  string `json:"vipTier"`
}

type ReferralDTO struct {
	ReferrerID string `json:"referrerId"`
}

type SimulateDepositDTO struct {
	UserID string `json:"userId"`
	PaymentDTO
}

type ReferralResponse struct {
	RefereeID  string `json:"refereeId"`
	ReferrerID string `json:"referrerId"`
	Status     string `json:"status"`
	Qualified  bool   `json:"qualified"`
}

// SettlementResponse reports the outcome of a settlement driven through the admin surface.
type SettlementResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Applied       bool   `json:"applied"`
	Credit        int64  `json:"credit"`
	Bonus         int64  `json:"bonus"`
	Balance       int64  `json:"balance"`
}

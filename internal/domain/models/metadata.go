package models

import (
	"time"
)

// Metadata is the provider payload snapshot of a transaction. Exactly the variant of the
// owning provider is expected to be set, next to the reconciler and admin stamps.
// Merge never drops information already recorded.
type Metadata struct {
	NowPayments  *NowPaymentsMeta  `json:"nowpayments,omitempty" bson:"nowpayments,omitempty"`
	CoinPayments *CoinPaymentsMeta `json:"coinpayments,omitempty" bson:"coinpayments,omitempty"`
	Stripe       *StripeMeta       `json:"stripe,omitempty" bson:"stripe,omitempty"`
	PayGate      *PayGateMeta      `json:"paygate,omitempty" bson:"paygate,omitempty"`
	LinkPay      *LinkPayMeta      `json:"linkpay,omitempty" bson:"linkpay,omitempty"`
	CashBox      *CashBoxMeta      `json:"cashbox,omitempty" bson:"cashbox,omitempty"`
	Expiry       *ExpiryMeta       `json:"expiry,omitempty" bson:"expiry,omitempty"`
	Admin        *AdminMeta        `json:"admin,omitempty" bson:"admin,omitempty"`
	History      []EventRecord     `json:"history,omitempty" bson:"history,omitempty"`
}

type NowPaymentsMeta struct {
	PaymentID     string `json:"paymentId,omitempty" bson:"payment_id,omitempty"`
	InvoiceID     string `json:"invoiceId,omitempty" bson:"invoice_id,omitempty"`
	PayoutID      string `json:"payoutId,omitempty" bson:"payout_id,omitempty"`
	OrderID       string `json:"orderId,omitempty" bson:"order_id,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty" bson:"payment_status,omitempty"`
	PayAddress    string `json:"payAddress,omitempty" bson:"pay_address,omitempty"`
	PayCurrency   string `json:"payCurrency,omitempty" bson:"pay_currency,omitempty"`
	PayAmount     string `json:"payAmount,omitempty" bson:"pay_amount,omitempty"`
	ActuallyPaid  string `json:"actuallyPaid,omitempty" bson:"actually_paid,omitempty"`
	OutcomeAmount string `json:"outcomeAmount,omitempty" bson:"outcome_amount,omitempty"`
}

type CoinPaymentsMeta struct {
	TxnID          string `json:"txnId,omitempty" bson:"txn_id,omitempty"`
	Status         string `json:"status,omitempty" bson:"status,omitempty"`
	StatusText     string `json:"statusText,omitempty" bson:"status_text,omitempty"`
	Currency1      string `json:"currency1,omitempty" bson:"currency1,omitempty"`
	Currency2      string `json:"currency2,omitempty" bson:"currency2,omitempty"`
	Amount1        string `json:"amount1,omitempty" bson:"amount1,omitempty"`
	Amount2        string `json:"amount2,omitempty" bson:"amount2,omitempty"`
	ReceivedAmount string `json:"receivedAmount,omitempty" bson:"received_amount,omitempty"`
	Custom         string `json:"custom,omitempty" bson:"custom,omitempty"`
}

type StripeMeta struct {
	EventID           string `json:"eventId,omitempty" bson:"event_id,omitempty"`
	EventType         string `json:"eventType,omitempty" bson:"event_type,omitempty"`
	SessionID         string `json:"sessionId,omitempty" bson:"session_id,omitempty"`
	PaymentIntentID   string `json:"paymentIntentId,omitempty" bson:"payment_intent_id,omitempty"`
	ClientReferenceID string `json:"clientReferenceId,omitempty" bson:"client_reference_id,omitempty"`
	PaymentStatus     string `json:"paymentStatus,omitempty" bson:"payment_status,omitempty"`
	AmountTotal       int64  `json:"amountTotal,omitempty" bson:"amount_total,omitempty"`
}

type PayGateMeta struct {
	OrderNumber   string `json:"orderNumber,omitempty" bson:"order_number,omitempty"`
	TransactionID string `json:"transactionId,omitempty" bson:"transaction_id,omitempty"`
	Status        string `json:"status,omitempty" bson:"status,omitempty"`
	Message       string `json:"message,omitempty" bson:"message,omitempty"`
	PaidAmount    string `json:"paidAmount,omitempty" bson:"paid_amount,omitempty"`
}

type LinkPayMeta struct {
	EventType     string `json:"eventType,omitempty" bson:"event_type,omitempty"`
	PaymentLinkID string `json:"paymentLinkId,omitempty" bson:"payment_link_id,omitempty"`
	PaymentID     string `json:"paymentId,omitempty" bson:"payment_id,omitempty"`
	Status        string `json:"status,omitempty" bson:"status,omitempty"`
	Amount        string `json:"amount,omitempty" bson:"amount,omitempty"`
}

type CashBoxMeta struct {
	OrderID string `json:"orderId,omitempty" bson:"order_id,omitempty"`
	TransID string `json:"transId,omitempty" bson:"trans_id,omitempty"`
	Status  string `json:"status,omitempty" bson:"status,omitempty"`
	Amount  string `json:"amount,omitempty" bson:"amount,omitempty"`
}

type ExpiryMeta struct {
	Reason    string    `json:"reason" bson:"reason"`
	Deadline  string    `json:"deadline" bson:"deadline"`
	ExpiredAt time.Time `json:"expiredAt" bson:"expired_at"`
}

type AdminMeta struct {
	Simulated bool   `json:"simulated" bson:"simulated"`
	Note      string `json:"note,omitempty" bson:"note,omitempty"`
}

// EventRecord is one inbound status report kept for audit.
type EventRecord struct {
	Source     string    `json:"source" bson:"source"`
	EventID    string    `json:"eventId,omitempty" bson:"event_id,omitempty"`
	RawStatus  string    `json:"rawStatus,omitempty" bson:"raw_status,omitempty"`
	Status     Status    `json:"status" bson:"status"`
	ReceivedAt time.Time `json:"receivedAt" bson:"received_at"`
}

// Merge folds next into m. Non-empty fields of next win over recorded ones, empty fields never
// clear anything and history only grows. A history record whose event id is already present
// is dropped, so replaying a delivery leaves the history unchanged.
func (m Metadata) Merge(next Metadata) Metadata {
	out := m
	out.NowPayments = mergeNowPayments(m.NowPayments, next.NowPayments)
	out.CoinPayments = mergeCoinPayments(m.CoinPayments, next.CoinPayments)
	out.Stripe = mergeStripe(m.Stripe, next.Stripe)
	out.PayGate = mergePayGate(m.PayGate, next.PayGate)
	out.LinkPay = mergeLinkPay(m.LinkPay, next.LinkPay)
	out.CashBox = mergeCashBox(m.CashBox, next.CashBox)
	if next.Expiry != nil {
		e := *next.Expiry
		out.Expiry = &e
	}
	if next.Admin != nil {
		a := *next.Admin
		if m.Admin != nil {
			a.Note = pick(m.Admin.Note, a.Note)
			a.Simulated = a.Simulated || m.Admin.Simulated
		}
		out.Admin = &a
	}
	out.History = make([]EventRecord, 0, len(m.History)+len(next.History))
	out.History = append(out.History, m.History...)
	for _, rec := range next.History {
		if !hasEvent(out.History, rec) {
			out.History = append(out.History, rec)
		}
	}
	return out
}

func hasEvent(history []EventRecord, rec EventRecord) bool {
	if rec.EventID == "" {
		return false
	}
	for _, h := range history {
		if h.Source == rec.Source && h.EventID == rec.EventID {
			return true
		}
	}
	return false
}

func pick(old, next string) string {
	if next == "" {
		return old
	}
	return next
}

func mergeNowPayments(old, next *NowPaymentsMeta) *NowPaymentsMeta {
	if next == nil {
		return old
	}
	if old == nil {
		n := *next
		return &n
	}
	return &NowPaymentsMeta{
		PaymentID:     pick(old.PaymentID, next.PaymentID),
		InvoiceID:     pick(old.InvoiceID, next.InvoiceID),
		PayoutID:      pick(old.PayoutID, next.PayoutID),
		OrderID:       pick(old.OrderID, next.OrderID),
		PaymentStatus: pick(old.PaymentStatus, next.PaymentStatus),
		PayAddress:    pick(old.PayAddress, next.PayAddress),
		PayCurrency:   pick(old.PayCurrency, next.PayCurrency),
		PayAmount:     pick(old.PayAmount, next.PayAmount),
		ActuallyPaid:  pick(old.ActuallyPaid, next.ActuallyPaid),
		OutcomeAmount: pick(old.OutcomeAmount, next.OutcomeAmount),
	}
}

func mergeCoinPayments(old, next *CoinPaymentsMeta) *CoinPaymentsMeta {
	if next == nil {
		return old
	}
	if old == nil {
		n := *next
		return &n
	}
	return &CoinPaymentsMeta{
		TxnID:          pick(old.TxnID, next.TxnID),
		Status:         pick(old.Status, next.Status),
		StatusText:     pick(old.StatusText, next.StatusText),
		Currency1:      pick(old.Currency1, next.Currency1),
		Currency2:      pick(old.Currency2, next.Currency2),
		Amount1:        pick(old.Amount1, next.Amount1),
		Amount2:        pick(old.Amount2, next.Amount2),
		ReceivedAmount: pick(old.ReceivedAmount, next.ReceivedAmount),
		Custom:         pick(old.Custom, next.Custom),
	}
}

func mergeStripe(old, next *StripeMeta) *StripeMeta {
	if next == nil {
		return old
	}
	if old == nil {
		n := *next
		return &n
	}
	amount := old.AmountTotal
	if next.AmountTotal != 0 {
		amount = next.AmountTotal
	}
	return &StripeMeta{
		EventID:           pick(old.EventID, next.EventID),
		EventType:         pick(old.EventType, next.EventType),
		SessionID:         pick(old.SessionID, next.SessionID),
		PaymentIntentID:   pick(old.PaymentIntentID, next.PaymentIntentID),
		ClientReferenceID: pick(old.ClientReferenceID, next.ClientReferenceID),
		PaymentStatus:     pick(old.PaymentStatus, next.PaymentStatus),
		AmountTotal:       amount,
	}
}

func mergePayGate(old, next *PayGateMeta) *PayGateMeta {
	if next == nil {
		return old
	}
	if old == nil {
		n := *next
		return &n
	}
	return &PayGateMeta{
		OrderNumber:   pick(old.OrderNumber, next.OrderNumber),
		TransactionID: pick(old.TransactionID, next.TransactionID),
		Status:        pick(old.Status, next.Status),
		Message:       pick(old.Message, next.Message),
		PaidAmount:    pick(old.PaidAmount, next.PaidAmount),
	}
}

func mergeLinkPay(old, next *LinkPayMeta) *LinkPayMeta {
	if next == nil {
		return old
	}
	if old == nil {
		n := *next
		return &n
	}
	return &LinkPayMeta{
		EventType:     pick(old.EventType, next.EventType),
		PaymentLinkID: pick(old.PaymentLinkID, next.PaymentLinkID),
		PaymentID:     pick(old.PaymentID, next.PaymentID),
		Status:        pick(old.Status, next.Status),
		Amount:        pick(old.Amount, next.Amount),
	}
}

func mergeCashBox(old, next *CashBoxMeta) *CashBoxMeta {
	if next == nil {
		return old
	}
	if old == nil {
		n := *next
		return &n
	}
	return &CashBoxMeta{
		OrderID: pick(old.OrderID, next.OrderID),
		TransID: pick(old.TransID, next.TransID),
		Status:  pick(old.Status, next.Status),
		Amount:  pick(old.Amount, next.Amount),
	}
}

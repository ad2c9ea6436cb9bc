package models

import (
	"errors"
	"strings"
)

type SaleStatus string

const (
	SaleStatusInProgress SaleStatus = "in_progress"
	SaleStatusCompleted  SaleStatus = "completed"
)

type ReceiptStatus string

const (
	ReceiptStatusPending ReceiptStatus = "pending"
	ReceiptStatusSent    ReceiptStatus = "sent"
	ReceiptStatusFailed  ReceiptStatus = "failed"
	ReceiptStatusSkipped ReceiptStatus = "skipped"
)

type ConversationStatus string

const (
	ConversationStatusOpen    ConversationStatus = "open"
	ConversationStatusClosed  ConversationStatus = "closed"
	ConversationStatusPending ConversationStatus = "pending"
)

func (s ConversationStatus) IsValid() bool {
	switch s {
	case ConversationStatusOpen, ConversationStatusClosed, ConversationStatusPending:
		return true
	}
	return false
}

type ConversationPriority string

const (
	ConversationPriorityLow    ConversationPriority = "low"
	ConversationPriorityNormal ConversationPriority = "normal"
	ConversationPriorityHigh   ConversationPriority = "high"
)

type MessageSender string

const (
	MessageSenderCustomer MessageSender = "customer"
	MessageSenderAgent    MessageSender = "agent"
)

func (s MessageSender) IsValid() bool {
	return s == MessageSenderCustomer || s == MessageSenderAgent
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

var ErrInvalidMessageStatus = errors.New("invalid message status")

// rank orders the forward-only lifecycle. failed is terminal and only reachable from sent.
func (s MessageStatus) rank() int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	case MessageStatusFailed:
		return 4
	}
	return 0
}

// CanTransitionTo reports whether moving from s to next is a forward transition.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if next.rank() == 0 || s == MessageStatusFailed {
		return false
	}
	if next == MessageStatusFailed {
		return s == MessageStatusSent
	}
	return next.rank() > s.rank()
}

// ParseProviderStatus maps provider callback statuses (queued, sent, delivered, read,
// undelivered, failed) onto MessageStatus.
func ParseProviderStatus(raw string) (MessageStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "accepted", "queued", "sending", "sent":
		return MessageStatusSent, nil
	case "delivered":
		return MessageStatusDelivered, nil
	case "read":
		return MessageStatusRead, nil
	case "failed", "undelivered":
		return MessageStatusFailed, nil
	}
	return "", ErrInvalidMessageStatus
}

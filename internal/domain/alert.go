package domain

import (
	"fmt"
	"strings"
	"time"
)

// Comparator 告警比较方向
type Comparator int

const (
	GreaterThan Comparator = iota + 1
	LessThan
)

// ParseComparator accepts the wire symbols (">", "<") and a few spelled-out aliases.
func ParseComparator(s string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ">", "gt", "above", "greater_than":
		return GreaterThan, nil
	case "<", "lt", "below", "less_than":
		return LessThan, nil
	default:
		return 0, fmt.Errorf("%w: condition must be \">\" or \"<\", got %q", ErrInvalidAlert, s)
	}
}

func (c Comparator) String() string {
	switch c {
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	default:
		return "?"
	}
}

func (c Comparator) Valid() bool { return c == GreaterThan || c == LessThan }

func (c Comparator) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid comparator %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Comparator) UnmarshalText(b []byte) error {
	v, err := ParseComparator(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Status 告警状态，只允许 Active -> Triggered
type Status string

const (
	StatusActive    Status = "active"
	StatusTriggered Status = "triggered"
)

// AlertCondition 持久化的阈值告警
type AlertCondition struct {
	ID           string     `json:"id"`
	Instrument   Instrument `json:"symbol"`
	Comparator   Comparator `json:"condition"`
	Threshold    float64    `json:"price"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	TriggeredAt  *time.Time `json:"triggeredAt,omitempty"`
	TriggerPrice *float64   `json:"triggerPrice,omitempty"`
}

// SatisfiedBy 严格不等：价格等于阈值时永不触发
func (a *AlertCondition) SatisfiedBy(price float64) bool {
	switch a.Comparator {
	case GreaterThan:
		return price > a.Threshold
	case LessThan:
		return price < a.Threshold
	default:
		return false
	}
}

func (a *AlertCondition) IsActive() bool { return a.Status == StatusActive }

// AlreadyMet reports whether a new or edited condition would fire (or sit exactly
// on the threshold) at the current reference price. Such alerts are rejected at
// creation time.
func AlreadyMet(cmp Comparator, threshold, current float64) bool {
	switch cmp {
	case GreaterThan:
		return threshold <= current
	case LessThan:
		return threshold >= current
	default:
		return false
	}
}

// PriceTick 单次价格观测，值类型，不持久化
type PriceTick struct {
	Instrument Instrument
	Price      float64
	ObservedAt time.Time
}

// FeedState 行情连接状态机：Connecting -> Open -> Closed
type FeedState int

const (
	FeedConnecting FeedState = iota
	FeedOpen
	FeedClosed
)

func (s FeedState) String() string {
	switch s {
	case FeedConnecting:
		return "connecting"
	case FeedOpen:
		return "open"
	case FeedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s FeedState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

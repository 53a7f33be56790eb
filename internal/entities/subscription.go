package entities

import (
	"encoding/json"
	"time"
)

type PlanPeriod string

const (
	PeriodWeek  PlanPeriod = "week"
	PeriodMonth PlanPeriod = "month"
	PeriodYear  PlanPeriod = "year"
)

// Extend returns t advanced by one period.
func (p PlanPeriod) Extend(t time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return t.AddDate(0, 0, 7)
	case PeriodYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

type SubscriptionPlan struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	Name   string     `gorm:"uniqueIndex;size:100" json:"name" validate:"required,max=100"`
	Price  int64      `json:"price" validate:"gte=0"`
	Period PlanPeriod `gorm:"size:10" json:"period" validate:"required,oneof=week month year"`
	// Features is a JSON-encoded list of feature strings.
	Features  string    `gorm:"type:text" json:"-"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// NewSubscriptionPlan validates and builds an active plan.
func NewSubscriptionPlan(name string, price int64, period PlanPeriod, features []string) (*SubscriptionPlan, error) {
	p := &SubscriptionPlan{Name: name, Price: price, Period: period, Active: true}
	if err := p.SetFeatures(features); err != nil {
		return nil, err
	}
	if err := check(p); err != nil {
		return nil, err
	}
	return p, nil
}

// FeatureList decodes the stored feature list.
func (p *SubscriptionPlan) FeatureList() []string {
	var out []string
	if p.Features == "" {
		return out
	}
	_ = json.Unmarshal([]byte(p.Features), &out)
	return out
}

// SetFeatures encodes features for storage.
func (p *SubscriptionPlan) SetFeatures(features []string) error {
	if features == nil {
		features = []string{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return err
	}
	p.Features = string(raw)
	return nil
}

// MarshalJSON exposes features as a list rather than the stored string.
func (p SubscriptionPlan) MarshalJSON() ([]byte, error) {
	type plain SubscriptionPlan
	return json.Marshal(struct {
		plain
		Features []string `json:"features"`
	}{plain: plain(p), Features: p.FeatureList()})
}

// Subscription records a paid period on a plan. A user is a subscriber
// while now falls inside [StartsAt, EndsAt).
type Subscription struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"index;not null" json:"user_id"`
	PlanID        uint             `gorm:"index;not null" json:"plan_id"`
	TransactionID uint             `gorm:"uniqueIndex" json:"transaction_id"`
	StartsAt      time.Time        `json:"starts_at"`
	EndsAt        time.Time        `gorm:"index" json:"ends_at"`
	Plan          SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// ActiveAt reports whether the subscription covers t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}

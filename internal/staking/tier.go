package staking

import (
	"encoding/json"
	"fmt"
	"strings"

	"cremationLedger/internal/model"
)

// Period selects a reward tier.
type Period uint8

const (
	Short Period = iota + 1
	Medium
	Long
)

const secondsPerDay = 86_400

var periodNames = map[Period]string{Short: "short", Medium: "medium", Long: "long"}

func (p Period) String() string {
	if name, ok := periodNames[p]; ok {
		return name
	}
	return fmt.Sprintf("period(%d)", uint8(p))
}

func (p Period) MarshalJSON() ([]byte, error) {
	name, ok := periodNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown staking period %d", uint8(p))
	}
	return json.Marshal(name)
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for period, n := range periodNames {
		if strings.EqualFold(n, name) {
			*p = period
			return nil
		}
	}
	return fmt.Errorf("unknown staking period %q", name)
}

// Tier is the fixed lock length and reward rate of a period.
type Tier struct {
	Period     Period         `json:"staking_period"`
	Days       uint64         `json:"staking_days"`
	RewardRate model.Fraction `json:"reward_rate"`
}

// Seconds is the lock length.
func (t Tier) Seconds() uint64 { return t.Days * secondsPerDay }

// Tiers returns the static tier table in period order.
func Tiers() []Tier {
	return []Tier{
		{Period: Short, Days: 30, RewardRate: model.NewFraction(3, 100)},
		{Period: Medium, Days: 90, RewardRate: model.NewFraction(10, 100)},
		{Period: Long, Days: 180, RewardRate: model.NewFraction(225, 1000)},
	}
}

func tierOf(p Period) (Tier, error) {
	for _, t := range Tiers() {
		if t.Period == p {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("unknown staking period %d", uint8(p))
}

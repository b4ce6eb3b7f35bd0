package models

// CardType is the outcome a drawn card represents
type CardType string

const (
	CardTypeGood CardType = "GOOD"
	CardTypeBad  CardType = "BAD"
)

// CardTypes lists every outcome type in catalog order
var CardTypes = []CardType{CardTypeGood, CardTypeBad}

// IsValid reports whether t is a known outcome type
func (t CardType) IsValid() bool {
	return t == CardTypeGood || t == CardTypeBad
}

func (t CardType) String() string { return string(t) }

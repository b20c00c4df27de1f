package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Instrument kinds are stored as plain lowercase strings. Callers that carry
// enumerated kinds must canonicalize before comparing (see aggregation.NormalizeKind).
const (
	KindStock = "stock"
	KindCall  = "call"
	KindPut   = "put"
)

type Position struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	PortfolioID uint64 `gorm:"not null;index"`

	Symbol     string `gorm:"type:varchar(40);not null;index"`
	Underlying string `gorm:"type:varchar(40);index"`
	Kind       string `gorm:"type:varchar(20);not null"`

	// Quantity is signed: negative for short positions. Options count contracts.
	Quantity   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	EntryDate  time.Time       `gorm:"type:date;not null"`

	Strike *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Expiry *time.Time       `gorm:"type:date"`

	// ExitDate set means the position is closed and immutable.
	ExitDate *time.Time `gorm:"type:date"`

	Tags datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}

func (p Position) IsOption() bool {
	return p.Kind == KindCall || p.Kind == KindPut
}

// Multiplier is the contract multiplier: 100 for options, 1 otherwise.
func (p Position) Multiplier() decimal.Decimal {
	if p.IsOption() {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}

// PriceSymbol is the symbol whose market price drives valuation. Options are
// valued off their own contract symbol; Greeks use the underlying.
func (p Position) PriceSymbol() string {
	return p.Symbol
}

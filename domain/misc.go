package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
)

type SortDir int8

const (
	SortDirAsc  = 1
	SortDirDesc = -1
)

type ChainId int32

// Address identifies a participant. It is opaque to the engine and only
// compared for equality after lower-casing.
type Address string

const EmptyAddress = Address("0x0000000000000000000000000000000000000000")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerPtr() *Address {
	res := a.ToLower()
	return &res
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

type TokenId string

func (i TokenId) String() string {
	return string(i)
}

// Amount is a fungible value serialized as a decimal string, the way chain
// amounts are stored in bson and json.
type Amount string

const ZeroAmount = Amount("0")

func (a Amount) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, xerrors.Errorf("parse amount %q: %w", string(a), ErrInvalidAmountFormat)
	}
	return d, nil
}

func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount(d.String())
}

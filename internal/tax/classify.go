package tax

import "github.com/ethereum/go-ethereum/common"

// Operation is the direction of a transfer relative to the venues.
type Operation uint8

const (
	OpTransfer Operation = iota
	OpBuy
	OpSell
)

func (o Operation) String() string {
	switch o {
	case OpBuy:
		return "buy"
	case OpSell:
		return "sell"
	default:
		return "transfer"
	}
}

// Classify decides whether moving value from -> to is a buy, a sell or a
// plain transfer. Exemptions are not considered here.
//
// Buy: from is a pool of some venue, to is not that venue's router.
// Sell: to is a pool or router of some venue and from is not a pool or
// router of any venue.
func Classify(from, to common.Address, reg Registry) Operation {
	if from == to {
		return OpTransfer
	}
	for _, v := range reg.Venues {
		if v.HasPool(from) && to != v.Router {
			return OpBuy
		}
	}
	if reg.IsVenueAddress(from) {
		return OpTransfer
	}
	for _, v := range reg.Venues {
		if v.HasPool(to) || v.Router == to {
			return OpSell
		}
	}
	return OpTransfer
}

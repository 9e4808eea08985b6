package settlement

import "github.com/holiman/uint256"

// DefaultCommissionBps is the platform commission: 10 %.
const DefaultCommissionBps = 1000

const bpsDenominator = 10_000

// Split divides gross into the platform fee and the seller's net. The fee is
// gross*bps/10000 rounded half up, and fee + net == gross exactly.
func Split(gross, bps uint64) (fee, net uint64) {
	if bps > bpsDenominator {
		bps = bpsDenominator
	}
	v := new(uint256.Int).Mul(uint256.NewInt(gross), uint256.NewInt(bps))
	v.AddUint64(v, bpsDenominator/2)
	v.Div(v, uint256.NewInt(bpsDenominator))
	fee = v.Uint64()
	return fee, gross - fee
}

package verification

import "solana-marketplace/internal/solana"

// nativeDelta returns post-minus-pre lamports of the account at key.
// ok is false when the account is not part of the transaction.
func nativeDelta(tx *solana.Transaction, key string) (delta int64, index int, ok bool) {
	for i, k := range tx.Message.AccountKeys {
		if k != key {
			continue
		}
		return int64(balanceAt(tx.Meta.PostBalances, i)) - int64(balanceAt(tx.Meta.PreBalances, i)), i, true
	}
	return 0, -1, false
}

// Indices past the end of the balance arrays are read as zero.
func balanceAt(balances []uint64, i int) uint64 {
	if i < 0 || i >= len(balances) {
		return 0
	}
	return balances[i]
}

// tokenDelta returns the net change of raw units of mint held by owner across
// all of owner's token accounts. ok is false when owner holds no account of mint.
func tokenDelta(tx *solana.Transaction, owner, mint string) (delta int64, ok bool) {
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			delta -= int64(b.Amount)
			ok = true
		}
	}
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			delta += int64(b.Amount)
			ok = true
		}
	}
	return delta, ok
}

// tokenMintsOf lists the mints whose balance changed for owner.
func tokenMintsOf(tx *solana.Transaction, owner string) []string {
	seen := make(map[string]bool)
	var mints []string
	for _, list := range [][]solana.TokenBalance{tx.Meta.PreTokenBalances, tx.Meta.PostTokenBalances} {
		for _, b := range list {
			if b.Owner == owner && !seen[b.Mint] {
				if d, _ := tokenDelta(tx, owner, b.Mint); d != 0 {
					mints = append(mints, b.Mint)
				}
				seen[b.Mint] = true
			}
		}
	}
	return mints
}

func hasAccount(tx *solana.Transaction, key string) bool {
	for _, k := range tx.Message.AccountKeys {
		if k == key {
			return true
		}
	}
	return false
}

package crypto

import "crypto/sha256"

// Deterministic derivation tags for pool-owned accounts. Each derived
// address is the first 20 bytes of sha256(tag || seed.Bytes()).
const (
	poolRecordTag    = "iptpool/pool"
	shareMintTag     = "iptpool/share-mint"
	reserveVaultTag  = "iptpool/reserve-vault"
)

// DerivePoolAddress derives the pool record address from the reserve asset
// mint it was created for.
func DerivePoolAddress(reserveAssetMint Address) Address {
	return deriveAddress(poolRecordTag, reserveAssetMint)
}

// DeriveShareMintAddress derives the share-mint address owned by the pool.
func DeriveShareMintAddress(pool Address) Address {
	return deriveAddress(shareMintTag, pool)
}

// DeriveReserveVaultAddress derives the reserve-vault address owned by the pool.
func DeriveReserveVaultAddress(pool Address) Address {
	return deriveAddress(reserveVaultTag, pool)
}

func deriveAddress(tag string, seed Address) Address {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write(seed.Bytes())
	sum := h.Sum(nil)
	return MustNewAddress(PoolPrefix, sum[:20])
}

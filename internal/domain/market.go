package domain

import "math/big"

// MarketID is the key of the singleton Market row.
const MarketID = "0"

// Market holds the platform fee configuration and the master/layer pointer.
// Fees are whole percentages.
type Market struct {
	ID                   string     `json:"id"`
	PlatformPrimaryFee   *big.Int   `json:"platform_primary_fee"`
	PlatformSecondaryFee *big.Int   `json:"platform_secondary_fee"`
	ArtistRoyaltyFee     *big.Int   `json:"artist_royalty_fee"`
	LastMasterArtwork    *ArtworkID `json:"last_master_artwork,omitempty"`
}

// MarketDefaults are the fee values a Market starts with.
type MarketDefaults struct {
	PlatformPrimaryFee   int64
	PlatformSecondaryFee int64
	ArtistRoyaltyFee     int64
}

// DefaultMarketDefaults returns 10% primary, 1% secondary and 4% royalty.
func DefaultMarketDefaults() MarketDefaults {
	return MarketDefaults{
		PlatformPrimaryFee:   10,
		PlatformSecondaryFee: 1,
		ArtistRoyaltyFee:     4,
	}
}

// NewMarket builds the singleton with the given defaults.
func NewMarket(d MarketDefaults) Market {
	return Market{
		ID:                   MarketID,
		PlatformPrimaryFee:   big.NewInt(d.PlatformPrimaryFee),
		PlatformSecondaryFee: big.NewInt(d.PlatformSecondaryFee),
		ArtistRoyaltyFee:     big.NewInt(d.ArtistRoyaltyFee),
	}
}

// Clone returns a deep copy.
func (m Market) Clone() Market {
	out := m
	out.PlatformPrimaryFee = cloneBig(m.PlatformPrimaryFee)
	out.PlatformSecondaryFee = cloneBig(m.PlatformSecondaryFee)
	out.ArtistRoyaltyFee = cloneBig(m.ArtistRoyaltyFee)
	out.LastMasterArtwork = clonePtr(m.LastMasterArtwork)
	return out
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/money"
)

// Sponsor kinds. Brands are the legacy advertiser accounts, organizations are
// member-managed accounts; both fund campaigns through the same ledger path.
const (
	SponsorKindBrand        = "BRAND"
	SponsorKindOrganization = "ORGANIZATION"
)

func IsValidSponsorKind(k string) bool {
	return k == SponsorKindBrand || k == SponsorKindOrganization
}

type Sponsor struct {
	ID               uuid.UUID   `json:"id"`
	Kind             string      `json:"kind"`
	Name             string      `json:"name"`
	Balance          money.Money `json:"balance"`
	TotalSpent       money.Money `json:"total_spent"`
	TotalCampaigns   int         `json:"total_campaigns"`
	TotalImpressions int64       `json:"total_impressions"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TracksImpressions reports whether verified views roll up into the sponsor
// record. Only organizations keep an aggregate impression counter.
func (s *Sponsor) TracksImpressions() bool {
	return s.Kind == SponsorKindOrganization
}

type SponsorStats struct {
	Balance          money.Money `json:"balance"`
	TotalSpent       money.Money `json:"total_spent"`
	TotalCampaigns   int         `json:"total_campaigns"`
	ActiveCampaigns  int         `json:"active_campaigns"`
	TotalImpressions int64       `json:"total_impressions"`
}

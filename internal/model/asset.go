package model

// VerificationTier is the directory's trust classification for an asset.
type VerificationTier string

const (
	// TierTrusted assets are vetted by the directory operator.
	TierTrusted VerificationTier = "trusted"
	// TierVerified assets passed the directory's verification process.
	TierVerified VerificationTier = "verified"
	// TierUnverified assets have no directory attestation.
	TierUnverified VerificationTier = "unverified"
	// TierSuspicious assets are flagged by the directory.
	TierSuspicious VerificationTier = "suspicious"
)

// Surfaceable reports whether assets of this tier may be offered as
// opt-in candidates. Unverified and suspicious assets never surface.
func (t VerificationTier) Surfaceable() bool {
	return t == TierTrusted || t == TierVerified
}

// VerifiedAsset is one directory catalog entry that passed tier
// filtering.
type VerifiedAsset struct {
	Name     string
	UnitName string
	Tier     VerificationTier
	ID       uint64
}

package domain

// GuardEvaluation is the outcome of checking one guard group for the connected wallet.
type GuardEvaluation struct {
	Label     string `json:"label"`      // group label, "default" without groups
	Allowed   bool   `json:"allowed"`    // wallet may mint through this group
	MaxAmount uint64 `json:"max_amount"` // items mintable now, 0 when blocked
	Reason    string `json:"reason,omitempty"`
}

// OwnedToken is a token held by the wallet together with its on-chain metadata.
type OwnedToken struct {
	Mint         string `json:"mint"`
	TokenAccount string `json:"token_account"`
	Amount       uint64 `json:"amount"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	URI          string `json:"uri"`                  // off-chain metadata URI
	Collection   string `json:"collection,omitempty"` // verified collection mint
}

// GalleryEntry is a displayable token derived from its off-chain metadata.
type GalleryEntry struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Mint     string `json:"mint"`
}

// AnyAllowed reports whether at least one evaluation allows minting.
func AnyAllowed(evals []GuardEvaluation) bool {
	for _, e := range evals {
		if e.Allowed {
			return true
		}
	}
	return false
}

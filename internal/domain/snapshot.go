package domain

// MachineSummary is the part of a loaded candy machine exposed to clients.
type MachineSummary struct {
	Address        string `json:"address"`
	Version        string `json:"version"`
	Authority      string `json:"authority"`
	MintAuthority  string `json:"mint_authority"`
	CollectionMint string `json:"collection_mint"`
	ItemsAvailable uint64 `json:"items_available"`
	ItemsRedeemed  uint64 `json:"items_redeemed"`
}

// GuardSummary is the part of a loaded candy guard exposed to clients.
type GuardSummary struct {
	Address string   `json:"address"`
	Groups  []string `json:"groups"`
}

// Snapshot is the complete gallery page state.
type Snapshot struct {
	Loading          bool              `json:"loading"`
	CheckEligibility bool              `json:"check_eligibility"`
	ModalOpen        bool              `json:"modal_open"`
	FirstRun         bool              `json:"first_run"`
	Wallet           string            `json:"wallet,omitempty"`
	MintAllowed      bool              `json:"mint_allowed"`
	Guards           []GuardEvaluation `json:"guards"`
	OwnedTokens      int               `json:"owned_tokens"`
	Gallery          []GalleryEntry    `json:"gallery"`
	Machine          *MachineSummary   `json:"machine,omitempty"`
	Guard            *GuardSummary     `json:"guard,omitempty"`
	ChainTime        int64             `json:"chain_time,omitempty"`   // unix seconds
	RefreshedAt      int64             `json:"refreshed_at,omitempty"` // ms
	LastError        string            `json:"last_error,omitempty"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Guards != nil {
		out.Guards = append([]GuardEvaluation(nil), s.Guards...)
	}
	if s.Gallery != nil {
		out.Gallery = append([]GalleryEntry(nil), s.Gallery...)
	}
	if s.Machine != nil {
		m := *s.Machine
		out.Machine = &m
	}
	if s.Guard != nil {
		g := *s.Guard
		g.Groups = append([]string(nil), s.Guard.Groups...)
		out.Guard = &g
	}
	return out
}

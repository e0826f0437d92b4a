package solana

import (
	"encoding/base64"
	"fmt"
)

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// DecodeData returns the raw account bytes.
func (a *AccountInfo) DecodeData() ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil account")
	}
	b, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return b, nil
}

// TokenAccount is a jsonParsed SPL token account.
type TokenAccount struct {
	Address  string // token account address
	Mint     string
	Owner    string
	Amount   uint64 // raw amount in base units
	Decimals int
}

// SlotNotification is a slotSubscribe message.
type SlotNotification struct {
	Slot   int64
	Parent int64
	Root   int64
}

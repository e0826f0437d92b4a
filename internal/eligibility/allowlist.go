package eligibility

import (
	"bytes"

	"golang.org/x/crypto/sha3"

	"candy-gallery/internal/solana"
)

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// allowListLeaf hashes the base58 form of an address, as the allowList guard does on chain.
func allowListLeaf(addr solana.PublicKey) []byte {
	return keccak([]byte(addr.String()))
}

// MerkleRoot computes the allowList merkle root of addresses.
// Pairs are hashed in sorted order and an odd node is carried up unchanged.
func MerkleRoot(addresses []solana.PublicKey) [32]byte {
	var root [32]byte
	if len(addresses) == 0 {
		return root
	}

	level := make([][]byte, len(addresses))
	for i, a := range addresses {
		level[i] = allowListLeaf(a)
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			a, b := level[i], level[i+1]
			if bytes.Compare(a, b) > 0 {
				a, b = b, a
			}
			next = append(next, keccak(a, b))
		}
		level = next
	}
	copy(root[:], level[0])
	return root
}

// AllowList is a configured list of addresses allowed to mint through allowList guards.
type AllowList struct {
	members map[solana.PublicKey]struct{}
	root    [32]byte
}

// NewAllowList builds an AllowList. Duplicates are kept in the root computation.
func NewAllowList(addresses []solana.PublicKey) *AllowList {
	l := &AllowList{
		members: make(map[solana.PublicKey]struct{}, len(addresses)),
		root:    MerkleRoot(addresses),
	}
	for _, a := range addresses {
		l.members[a] = struct{}{}
	}
	return l
}

// Root returns the merkle root of the list.
func (l *AllowList) Root() [32]byte {
	return l.root
}

// Contains reports whether addr is on the list.
func (l *AllowList) Contains(addr solana.PublicKey) bool {
	_, ok := l.members[addr]
	return ok
}

// Package asset models non-fungible asset collections: unique tokens with a
// single owner and an optional per-token approved operator.
package asset

import (
	"fmt"

	"commitvault/internal/failure"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownCollection = failure.New(failure.KindNotFound, "asset collection not found")
	ErrUnknownToken      = failure.New(failure.KindNotFound, "asset token not found")
	ErrTransferDenied    = failure.New(failure.KindTransferDenied, "asset transfer denied")
	ErrNotOwner          = failure.New(failure.KindCallerDenied, "caller does not own the asset")
)

// Ref identifies one token of one collection.
type Ref struct {
	Collection common.Address `json:"collection"`
	TokenID    uint64         `json:"tokenId"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Collection.Hex(), r.TokenID)
}

// Token is a minted asset.
type Token struct {
	ID       uint64         `json:"tokenId"`
	Owner    common.Address `json:"owner"`
	URI      string         `json:"tokenURI"`
	Approved common.Address `json:"approved"`
}

// Collection is one asset contract. Token ids start at 1.
type Collection struct {
	Address common.Address
	Name    string
	Symbol  string
	tokens  map[uint64]*Token
	nextID  uint64
}

func NewCollection(addr common.Address, name, symbol string) *Collection {
	return &Collection{
		Address: addr,
		Name:    name,
		Symbol:  symbol,
		tokens:  make(map[uint64]*Token),
		nextID:  1,
	}
}

// Mint creates a token owned by recipient.
func (c *Collection) Mint(recipient common.Address, uri string) (Token, error) {
	if recipient == (common.Address{}) {
		return Token{}, failure.New(failure.KindInvalidArgument, "mint to the zero identity")
	}
	tok := &Token{ID: c.nextID, Owner: recipient, URI: uri}
	c.tokens[tok.ID] = tok
	c.nextID++
	return *tok, nil
}

// OwnerOf returns the current owner of id.
func (c *Collection) OwnerOf(id uint64) (common.Address, error) {
	tok, ok := c.tokens[id]
	if !ok {
		return common.Address{}, fmt.Errorf("%s#%d: %w", c.Address.Hex(), id, ErrUnknownToken)
	}
	return tok.Owner, nil
}

// Token returns a copy of token id.
func (c *Collection) Token(id uint64) (Token, error) {
	tok, ok := c.tokens[id]
	if !ok {
		return Token{}, fmt.Errorf("%s#%d: %w", c.Address.Hex(), id, ErrUnknownToken)
	}
	return *tok, nil
}

// Approve lets operator move token id once. Only the owner may approve.
func (c *Collection) Approve(caller, operator common.Address, id uint64) error {
	tok, ok := c.tokens[id]
	if !ok {
		return fmt.Errorf("%s#%d: %w", c.Address.Hex(), id, ErrUnknownToken)
	}
	if tok.Owner != caller {
		return ErrNotOwner
	}
	tok.Approved = operator
	return nil
}

// TransferFrom moves id from from to to on behalf of operator. The operator
// must be the owner or the approved address; the approval is cleared.
func (c *Collection) TransferFrom(operator, from, to common.Address, id uint64) error {
	tok, ok := c.tokens[id]
	if !ok {
		return fmt.Errorf("%s#%d: %w", c.Address.Hex(), id, ErrTransferDenied)
	}
	if tok.Owner != from {
		return fmt.Errorf("%s#%d not owned by %s: %w", c.Address.Hex(), id, from.Hex(), ErrTransferDenied)
	}
	if operator != from && operator != tok.Approved {
		return fmt.Errorf("%s not approved for %s#%d: %w", operator.Hex(), c.Address.Hex(), id, ErrTransferDenied)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to the zero identity: %w", ErrTransferDenied)
	}
	tok.Owner = to
	tok.Approved = common.Address{}
	return nil
}

func (c *Collection) clone() *Collection {
	out := NewCollection(c.Address, c.Name, c.Symbol)
	out.nextID = c.nextID
	for id, tok := range c.tokens {
		cp := *tok
		out.tokens[id] = &cp
	}
	return out
}

// Registry groups collections by address and implements the custody
// operations needed by vaults.
type Registry struct {
	collections map[common.Address]*Collection
}

func NewRegistry(cols ...*Collection) *Registry {
	r := &Registry{collections: make(map[common.Address]*Collection, len(cols))}
	for _, c := range cols {
		r.collections[c.Address] = c
	}
	return r
}

// Collection returns the collection at addr.
func (r *Registry) Collection(addr common.Address) (*Collection, error) {
	c, ok := r.collections[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownCollection)
	}
	return c, nil
}

// Transfer moves ref from from to to with operator acting.
func (r *Registry) Transfer(operator, from, to common.Address, ref Ref) error {
	c, ok := r.collections[ref.Collection]
	if !ok {
		return fmt.Errorf("%s: %w", ref, ErrTransferDenied)
	}
	return c.TransferFrom(operator, from, to, ref.TokenID)
}

// OwnerOf returns the owner of ref.
func (r *Registry) OwnerOf(ref Ref) (common.Address, error) {
	c, err := r.Collection(ref.Collection)
	if err != nil {
		return common.Address{}, err
	}
	return c.OwnerOf(ref.TokenID)
}

// Clone returns a deep copy used for dry runs.
func (r *Registry) Clone() *Registry {
	out := &Registry{collections: make(map[common.Address]*Collection, len(r.collections))}
	for addr, c := range r.collections {
		out.collections[addr] = c.clone()
	}
	return out
}

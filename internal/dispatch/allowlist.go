package dispatch

import (
	"sort"

	"commitvault/internal/gateway"
)

// AllowList maps an entity to the operations that may be dispatched on it.
// It is immutable once built.
type AllowList struct {
	ops map[string]map[string]struct{}
}

func NewAllowList(m map[string][]string) AllowList {
	ops := make(map[string]map[string]struct{}, len(m))
	for entity, names := range m {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		ops[entity] = set
	}
	return AllowList{ops: ops}
}

// DefaultAllowList is the deployment default. The vault factory is listed
// with no operations: vault creation is a party's own action.
func DefaultAllowList() AllowList {
	return NewAllowList(DefaultAllowListMap())
}

func DefaultAllowListMap() map[string][]string {
	return map[string][]string{
		gateway.EntityProofOfMatch:  {gateway.OpCreateMatch},
		gateway.EntityMatchData:     {gateway.OpRecordInteraction},
		gateway.EntityExperienceNFT: {gateway.OpMintExperience},
		gateway.EntityVaultFactory:  {},
		gateway.EntityPresenceScore: {},
		gateway.EntityVault:         {gateway.OpExecuteRedemption, gateway.OpExecuteDissolution},
	}
}

func (a AllowList) Allows(entity, op string) bool {
	_, ok := a.ops[entity][op]
	return ok
}

// Map returns a sorted copy.
func (a AllowList) Map() map[string][]string {
	out := make(map[string][]string, len(a.ops))
	for entity, set := range a.ops {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		out[entity] = names
	}
	return out
}

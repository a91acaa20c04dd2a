package hiveapi

import (
	"fmt"
)

// PlacementEngine resolves matrix slots for newly activated members.
// Slot contention is settled by the unique slot index: the engine
// searches, inserts, and re-searches on a lost race.
type PlacementEngine struct {
	Settings MatrixSettings
}

func NewPlacementEngine(settings MatrixSettings) *PlacementEngine {
	return &PlacementEngine{Settings: settings}
}

// PlaceInUplines places the member into the matrix of every upline
// ancestor, starting at the direct referrer and walking up at most
// RewardDepth referrals. Ancestor team counters are bumped for each
// placement actually made.
func (e *PlacementEngine) PlaceInUplines(store Store, member *Member) ([]MatrixPlacement, error) {
	var placements []MatrixPlacement

	rootWallet := member.ReferrerWallet
	for depth := 1; depth <= e.Settings.RewardDepth && rootWallet != ""; depth++ {
		root, err := store.GetMemberForUpdate(rootWallet)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, fmt.Errorf("upline %s at depth %d: %w", rootWallet, depth, ErrMemberUnknown)
		}

		placement, created, err := e.PlaceMember(store, root.WalletAddress, member)
		if err != nil {
			return nil, err
		}
		if created {
			placements = append(placements, *placement)
			root.TotalTeamSize++
			if depth == 1 {
				root.DirectReferrals++
			}
			if err := store.SaveMember(root); err != nil {
				return nil, err
			}
		}

		rootWallet = root.ReferrerWallet
	}

	return placements, nil
}

// PlaceMember places the member into one root's matrix and reports
// whether a new row was created. A member already present in the
// matrix is left where they are.
func (e *PlacementEngine) PlaceMember(store Store, root string, member *Member) (*MatrixPlacement, bool, error) {
	existing, err := store.MemberPlacement(root, member.WalletAddress)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	direct := member.ReferrerWallet == root

	retries := e.Settings.PlacementRetries
	if retries < 1 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		layer, position, err := e.findSlot(store, root, direct)
		if err != nil {
			return nil, false, err
		}

		parent := root
		if layer > 1 {
			above, err := store.GetPlacement(root, layer-1, ParentPosition(position))
			if err != nil {
				return nil, false, err
			}
			if above != nil {
				parent = above.MemberWallet
			}
		}

		referralType := ReferralTypeSpillover
		if direct && layer == 1 {
			referralType = ReferralTypeDirect
		}

		placement := &MatrixPlacement{
			MatrixRootWallet: root,
			MemberWallet:     member.WalletAddress,
			Layer:            layer,
			Position:         position,
			ParentWallet:     parent,
			ReferralType:     referralType,
		}
		err = store.InsertPlacement(placement)
		if err == nil {
			return placement, true, nil
		}
		if err == ErrDuplicateSlot {
			// lost the slot race, search again
			continue
		}
		if err == ErrDuplicateMember {
			existing, lookupErr := store.MemberPlacement(root, member.WalletAddress)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return nil, false, fmt.Errorf("placement under %s: %w", root, ErrDuplicateSlot)
}

// findSlot returns the first open slot in canonical order. Direct
// referrals prefer the referrer's own layer 1 before spilling over.
func (e *PlacementEngine) findSlot(store Store, root string, direct bool) (int, string, error) {
	if direct {
		layer, position, found, err := e.openSlotInLayer(store, root, 1)
		if err != nil {
			return 0, "", err
		}
		if found {
			return layer, position, nil
		}
	}

	for layer := 1; layer <= e.Settings.MaxPlacementDepth; layer++ {
		count, err := store.CountLayer(root, layer)
		if err != nil {
			return 0, "", err
		}
		if count >= LayerCapacity(layer) {
			continue
		}
		l, position, found, err := e.openSlotInLayer(store, root, layer)
		if err != nil {
			return 0, "", err
		}
		if found {
			return l, position, nil
		}
	}

	return 0, "", ErrMatrixFull
}

func (e *PlacementEngine) openSlotInLayer(store Store, root string, layer int) (int, string, bool, error) {
	occupied, err := store.ListLayer(root, layer)
	if err != nil {
		return 0, "", false, err
	}
	taken := make(map[string]bool, len(occupied))
	for _, p := range occupied {
		taken[p.Position] = true
	}
	capacity := LayerCapacity(layer)
	for index := int64(0); index < capacity; index++ {
		position := PositionPath(layer, index)
		if !taken[position] {
			return layer, position, true, nil
		}
	}
	return 0, "", false, nil
}

package funnel

import (
	"github.com/lumen-webinar/backend/internal/models"
)

// Stage aliasing: ADDED_TO_CART and BREAKOUT_ROOM label the same physical
// storage slot. ADDED_TO_CART is the stored value; which label a session
// exposes depends on its CTA type. The mapping lives here so query and
// counting code never branch on CTA type themselves.

// StorageStage maps a nominal stage to the stage value written to the store
// for a session with the given CTA type. Unknown stages pass through
// unchanged; the function is total and never fails.
func StorageStage(ctaType models.CtaType, nominal models.FunnelStage) models.FunnelStage {
	if ctaType == models.CtaBookACall && nominal == models.StageBreakoutRoom {
		return models.StageAddedToCart
	}
	return nominal
}

// NominalStage maps a stored stage back to the label a session with the given
// CTA type exposes. Inverse of StorageStage.
func NominalStage(ctaType models.CtaType, storage models.FunnelStage) models.FunnelStage {
	if ctaType == models.CtaBookACall && storage == models.StageAddedToCart {
		return models.StageBreakoutRoom
	}
	return storage
}

// VisibleStages returns the nominal stages a session with the given CTA type
// exposes, in funnel order. Exactly one of the aliased pair appears:
// BREAKOUT_ROOM for BOOK_A_CALL, ADDED_TO_CART otherwise. Enumerating only
// one of the pair keeps the shared slot from being counted twice.
func VisibleStages(ctaType models.CtaType) []models.FunnelStage {
	stages := make([]models.FunnelStage, 0, len(models.AllStages)-1)
	for _, s := range models.AllStages {
		if s == models.StageAddedToCart && ctaType == models.CtaBookACall {
			continue
		}
		if s == models.StageBreakoutRoom && ctaType != models.CtaBookACall {
			continue
		}
		stages = append(stages, s)
	}
	return stages
}

// ValidNominalStage reports whether a session with the given CTA type exposes
// the nominal stage. The hidden half of the aliased pair and unknown stage
// strings both fail.
func ValidNominalStage(ctaType models.CtaType, nominal models.FunnelStage) bool {
	for _, s := range VisibleStages(ctaType) {
		if s == nominal {
			return true
		}
	}
	return false
}

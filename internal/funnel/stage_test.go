package funnel

import (
	"testing"

	"github.com/lumen-webinar/backend/internal/models"
)

func TestStorageStage(t *testing.T) {
	tests := []struct {
		name    string
		ctaType models.CtaType
		nominal models.FunnelStage
		want    models.FunnelStage
	}{
		{"breakout room aliases to cart for book-a-call", models.CtaBookACall, models.StageBreakoutRoom, models.StageAddedToCart},
		{"cart passes through for buy-now", models.CtaBuyNow, models.StageAddedToCart, models.StageAddedToCart},
		{"registered passes through", models.CtaBookACall, models.StageRegistered, models.StageRegistered},
		{"converted passes through", models.CtaBookACall, models.StageConverted, models.StageConverted},
		{"breakout room passes through for buy-now", models.CtaBuyNow, models.StageBreakoutRoom, models.StageBreakoutRoom},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StorageStage(tc.ctaType, tc.nominal); got != tc.want {
				t.Errorf("StorageStage(%s, %s) = %s, want %s", tc.ctaType, tc.nominal, got, tc.want)
			}
		})
	}
}

func TestNominalStage(t *testing.T) {
	if got := NominalStage(models.CtaBookACall, models.StageAddedToCart); got != models.StageBreakoutRoom {
		t.Errorf("NominalStage(BOOK_A_CALL, ADDED_TO_CART) = %s, want BREAKOUT_ROOM", got)
	}
	if got := NominalStage(models.CtaBuyNow, models.StageAddedToCart); got != models.StageAddedToCart {
		t.Errorf("NominalStage(BUY_NOW, ADDED_TO_CART) = %s, want ADDED_TO_CART", got)
	}
	if got := NominalStage(models.CtaBookACall, models.StageAttended); got != models.StageAttended {
		t.Errorf("NominalStage(BOOK_A_CALL, ATTENDED) = %s, want ATTENDED", got)
	}
}

func TestStorageNominalRoundTrip(t *testing.T) {
	for _, ctaType := range []models.CtaType{models.CtaBookACall, models.CtaBuyNow} {
		for _, nominal := range VisibleStages(ctaType) {
			back := NominalStage(ctaType, StorageStage(ctaType, nominal))
			if back != nominal {
				t.Errorf("round trip for %s/%s = %s", ctaType, nominal, back)
			}
		}
	}
}

func TestVisibleStages(t *testing.T) {
	bookACall := VisibleStages(models.CtaBookACall)
	buyNow := VisibleStages(models.CtaBuyNow)

	if len(bookACall) != len(buyNow) {
		t.Fatalf("stage list lengths differ: %d vs %d", len(bookACall), len(buyNow))
	}

	contains := func(stages []models.FunnelStage, s models.FunnelStage) bool {
		for _, x := range stages {
			if x == s {
				return true
			}
		}
		return false
	}

	if contains(bookACall, models.StageAddedToCart) {
		t.Error("BOOK_A_CALL exposes ADDED_TO_CART")
	}
	if !contains(bookACall, models.StageBreakoutRoom) {
		t.Error("BOOK_A_CALL missing BREAKOUT_ROOM")
	}
	if contains(buyNow, models.StageBreakoutRoom) {
		t.Error("BUY_NOW exposes BREAKOUT_ROOM")
	}
	if !contains(buyNow, models.StageAddedToCart) {
		t.Error("BUY_NOW missing ADDED_TO_CART")
	}

	// Funnel order is preserved: REGISTERED first, CONVERTED last.
	if bookACall[0] != models.StageRegistered || bookACall[len(bookACall)-1] != models.StageConverted {
		t.Errorf("BOOK_A_CALL stage order wrong: %v", bookACall)
	}
}

func TestValidNominalStage(t *testing.T) {
	tests := []struct {
		name    string
		ctaType models.CtaType
		nominal models.FunnelStage
		want    bool
	}{
		{"cart visible for buy-now", models.CtaBuyNow, models.StageAddedToCart, true},
		{"breakout room hidden for buy-now", models.CtaBuyNow, models.StageBreakoutRoom, false},
		{"breakout room visible for book-a-call", models.CtaBookACall, models.StageBreakoutRoom, true},
		{"cart hidden for book-a-call", models.CtaBookACall, models.StageAddedToCart, false},
		{"converted visible everywhere", models.CtaBuyNow, models.StageConverted, true},
		{"unknown stage rejected", models.CtaBuyNow, models.FunnelStage("VIP_LOUNGE"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidNominalStage(tc.ctaType, tc.nominal); got != tc.want {
				t.Errorf("ValidNominalStage(%s, %s) = %v, want %v", tc.ctaType, tc.nominal, got, tc.want)
			}
		})
	}
}

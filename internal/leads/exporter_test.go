package leads

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-webinar/backend/internal/models"
)

func attendance(email, name string, stage models.FunnelStage, callStatus models.CallStatus, joinedAt time.Time) models.Attendance {
	return models.Attendance{
		ID:       uuid.New(),
		Stage:    stage,
		JoinedAt: joinedAt,
		Attendee: &models.Attendee{
			ID:         uuid.New(),
			Email:      email,
			Name:       name,
			CallStatus: callStatus,
		},
	}
}

func TestRenderCSV(t *testing.T) {
	joined := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	rows := []models.Attendance{
		attendance("a@example.com", "Amy", models.StageRegistered, models.CallPending, joined),
		attendance("b@example.com", "Bob", models.StageAddedToCart, models.CallCompleted, joined.Add(time.Minute)),
	}

	data, count, err := RenderCSV(models.CtaBookACall, rows)
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2 rows", len(records))
	}
	if records[0][0] != "email" || records[0][2] != "stage" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "a@example.com" || records[1][2] != "REGISTERED" {
		t.Errorf("row 1 = %v", records[1])
	}
	// Stored ADDED_TO_CART is exposed as BREAKOUT_ROOM for BOOK_A_CALL sessions.
	if records[2][2] != "BREAKOUT_ROOM" {
		t.Errorf("row 2 stage = %s, want BREAKOUT_ROOM", records[2][2])
	}
	if records[2][3] != "COMPLETED" {
		t.Errorf("row 2 call status = %s", records[2][3])
	}
	if records[1][4] != "2026-03-14T18:00:00Z" {
		t.Errorf("row 1 joined_at = %s", records[1][4])
	}
}

func TestRenderCSVBuyNowKeepsCartLabel(t *testing.T) {
	rows := []models.Attendance{
		attendance("a@example.com", "Amy", models.StageAddedToCart, models.CallPending, time.Now()),
	}
	data, _, err := RenderCSV(models.CtaBuyNow, rows)
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if records[1][2] != "ADDED_TO_CART" {
		t.Errorf("stage = %s, want ADDED_TO_CART", records[1][2])
	}
}

func TestRenderCSVEmpty(t *testing.T) {
	data, count, err := RenderCSV(models.CtaBuyNow, nil)
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want header only", len(records))
	}
}

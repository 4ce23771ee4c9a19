package funnel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumen-webinar/backend/internal/auth"
	"github.com/lumen-webinar/backend/internal/models"
)

func newFunnelRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(store, nil)
	tokens := auth.NewTokenService("test-secret", 1)
	handler := NewHandler(engine, tokens, nil)

	router := gin.New()
	router.POST("/sessions/:id/register", handler.Register)
	router.GET("/sessions/:id/funnel", handler.GetFunnel)
	router.POST("/sessions/:id/attendees/:attendeeId/promote", handler.Promote)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint(t *testing.T) {
	store := newMemStore()
	session := store.addSession(models.CtaBuyNow)
	router := newFunnelRouter(store)

	w := postJSON(t, router, "/sessions/"+session.ID.String()+"/register", map[string]string{
		"email": "amy@example.com",
		"name":  "Amy",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Attendance   models.Attendance `json:"attendance"`
			ChannelToken string            `json:"channel_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.Attendance.Stage != models.StageRegistered {
		t.Errorf("stage = %s, want REGISTERED", resp.Data.Attendance.Stage)
	}
	if resp.Data.ChannelToken == "" {
		t.Error("no channel token issued")
	}

	// The token admits the attendee to this session's topic.
	claims, err := auth.NewTokenService("test-secret", 1).Validate(resp.Data.ChannelToken)
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.SessionID != session.ID || claims.AttendeeID != resp.Data.Attendance.AttendeeID {
		t.Error("token claims do not match the registration")
	}
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	store := newMemStore()
	session := store.addSession(models.CtaBuyNow)
	router := newFunnelRouter(store)
	body := map[string]string{"email": "amy@example.com", "name": "Amy"}
	path := "/sessions/" + session.ID.String() + "/register"

	if w := postJSON(t, router, path, body); w.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", w.Code)
	}
	w := postJSON(t, router, path, body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", w.Code)
	}

	var resp struct {
		Data models.Attendance `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.Stage != models.StageRegistered {
		t.Errorf("conflict payload stage = %s, want the existing attendance", resp.Data.Stage)
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	store := newMemStore()
	session := store.addSession(models.CtaBuyNow)
	router := newFunnelRouter(store)
	path := "/sessions/" + session.ID.String() + "/register"

	if w := postJSON(t, router, path, map[string]string{"name": "Amy"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing email status = %d, want 400", w.Code)
	}
	if w := postJSON(t, router, path, map[string]string{"email": "not-an-email", "name": "Amy"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", w.Code)
	}
	if w := postJSON(t, router, "/sessions/not-a-uuid/register", map[string]string{"email": "a@b.com", "name": "Amy"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad session id status = %d, want 400", w.Code)
	}
	if w := postJSON(t, router, "/sessions/"+uuid.New().String()+"/register", map[string]string{"email": "a@b.com", "name": "Amy"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", w.Code)
	}
}

func TestGetFunnelEndpoint(t *testing.T) {
	store := newMemStore()
	session := store.addSession(models.CtaBookACall)
	router := newFunnelRouter(store)

	w := postJSON(t, router, "/sessions/"+session.ID.String()+"/register", map[string]string{
		"email": "amy@example.com", "name": "Amy",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID.String()+"/funnel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("funnel status = %d (%s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data Funnel `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.CtaType != models.CtaBookACall {
		t.Errorf("cta type = %s", resp.Data.CtaType)
	}
	if len(resp.Data.Stages) != len(VisibleStages(models.CtaBookACall)) {
		t.Errorf("stages = %d, want %d", len(resp.Data.Stages), len(VisibleStages(models.CtaBookACall)))
	}
	if resp.Data.Stages[0].Stage != models.StageRegistered || resp.Data.Stages[0].Count != 1 {
		t.Errorf("first bucket = %+v", resp.Data.Stages[0])
	}
}

func TestPromoteEndpoint(t *testing.T) {
	store := newMemStore()
	session := store.addSession(models.CtaBookACall)
	router := newFunnelRouter(store)

	w := postJSON(t, router, "/sessions/"+session.ID.String()+"/register", map[string]string{
		"email": "amy@example.com", "name": "Amy",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}
	var created struct {
		Data struct {
			Attendance models.Attendance `json:"attendance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	attendeeID := created.Data.Attendance.AttendeeID

	path := "/sessions/" + session.ID.String() + "/attendees/" + attendeeID.String() + "/promote"
	w = postJSON(t, router, path, map[string]string{"stage": string(models.StageBreakoutRoom)})
	if w.Code != http.StatusOK {
		t.Fatalf("promote status = %d (%s)", w.Code, w.Body.String())
	}

	att, _ := store.FindAttendance(context.Background(), attendeeID, session.ID)
	if att.Stage != models.StageAddedToCart {
		t.Errorf("stored stage = %s, want ADDED_TO_CART", att.Stage)
	}

	// Unknown attendee cannot be promoted into existence.
	path = "/sessions/" + session.ID.String() + "/attendees/" + uuid.New().String() + "/promote"
	if w := postJSON(t, router, path, map[string]string{"stage": string(models.StageConverted)}); w.Code != http.StatusNotFound {
		t.Errorf("unknown attendee status = %d, want 404", w.Code)
	}
}

func TestPromoteEndpointRejectsBadStage(t *testing.T) {
	store := newMemStore()
	session := store.addSession(models.CtaBuyNow)
	router := newFunnelRouter(store)

	w := postJSON(t, router, "/sessions/"+session.ID.String()+"/register", map[string]string{
		"email": "amy@example.com", "name": "Amy",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}
	var created struct {
		Data struct {
			Attendance models.Attendance `json:"attendance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	path := "/sessions/" + session.ID.String() + "/attendees/" + created.Data.Attendance.AttendeeID.String() + "/promote"

	if w := postJSON(t, router, path, map[string]string{"stage": "VIP_LOUNGE"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown stage status = %d, want 400", w.Code)
	}
	// BREAKOUT_ROOM belongs to BOOK_A_CALL sessions only.
	if w := postJSON(t, router, path, map[string]string{"stage": string(models.StageBreakoutRoom)}); w.Code != http.StatusBadRequest {
		t.Errorf("hidden stage status = %d, want 400", w.Code)
	}
}

package pharmacy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *memStore, *echo.Echo) {
	svc, s := newTestService()
	return NewHandler(svc), s, echo.New()
}

func TestHandler_CreatePurchase(t *testing.T) {
	h, s, e := newTestHandler()
	body := `{"patient_id":1,"items":[{"item_id":3,"quantity":2},{"item_id":4,"quantity":3}],"amount_paid":"35","mode":"Card"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePurchase(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["purchase_id"] != float64(1) {
		t.Errorf("expected purchase_id 1, got %v", resp["purchase_id"])
	}
	if len(s.payments) != 1 || s.payments[0].Mode != "Card" {
		t.Errorf("expected one Card payment, got %+v", s.payments)
	}
}

func TestHandler_CreatePurchase_MissingItems(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patient_id":1,"items":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreatePurchase(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_CreatePurchase_StoreFailure(t *testing.T) {
	h, s, e := newTestHandler()
	s.failOn = "total"
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patient_id":1,"items":[{"item_id":3,"quantity":1}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreatePurchase(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	body, _ := httpErr.Message.(map[string]string)
	if body["details"] == "" {
		t.Errorf("expected diagnostic details, got %v", httpErr.Message)
	}
}

func TestHandler_ListByPatient_Empty(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.ListByPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", rec.Body.String())
	}
}

func TestHandler_DeletePurchase_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("0")

	err := h.DeletePurchase(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_CreatePurchase_NumericStrings(t *testing.T) {
	h, s, e := newTestHandler()
	body := `{"patient_id":"1","pharmacy_id":"","items":[{"item_id":"3","quantity":"2"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePurchase(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(s.lines) != 1 || s.lines[0].ItemID != 3 || s.lines[0].Quantity != 2 {
		t.Errorf("expected one line of item 3 x2, got %+v", s.lines)
	}
	if p := s.purchases[1]; p.PatientID != 1 || p.PharmacyID != nil {
		t.Errorf("expected patient 1 and no pharmacy, got %+v", p)
	}
}

func TestHandler_CreatePurchase_NonNumericID(t *testing.T) {
	h, s, e := newTestHandler()
	body := `{"patient_id":"abc","items":[{"item_id":3,"quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreatePurchase(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
	assertNothingPersisted(t, s)
}

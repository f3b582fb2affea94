package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ridehail/internal/apperr"
)

func TestStatusForDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("ride %s not found", "R1"), http.StatusNotFound},
		{apperr.InvalidState("cannot move"), http.StatusConflict},
		{apperr.New(apperr.KindAlreadyProcessed, "dup"), http.StatusConflict},
		{apperr.New(apperr.KindDriverUnavailable, "busy"), http.StatusConflict},
		{apperr.Unauthorized("nope"), http.StatusForbidden},
		{apperr.New(apperr.KindInsufficientFunds, "low"), http.StatusPaymentRequired},
		{apperr.New(apperr.KindPaymentDeclined, "declined"), http.StatusPaymentRequired},
		{apperr.Validation("lat", "out of range"), http.StatusBadRequest},
		{fmt.Errorf("store: %w", apperr.NotFound("gone")), http.StatusNotFound},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(apperr.KindOf(tt.err)); got != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestIsValidID(t *testing.T) {
	for id, want := range map[string]bool{
		"RIDE_LOYW3V28_0A1B2C3D": true,
		"drv-1":                  true,
		"":                       false,
		"a b":                    false,
		"../etc":                 false,
	} {
		if got := isValidID(id); got != want {
			t.Errorf("isValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{"", 20, true},
		{"?limit=5", 5, true},
		{"?limit=100", 100, true},
		{"?limit=0", 0, false},
		{"?limit=101", 0, false},
		{"?limit=ten", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			got, ok := queryLimit(c, 20, 100)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("queryLimit = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
			if !ok && w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/wardlink/wardlink/internal/platform/db"
)

func TestHealthHandlerReportsPoolUtilisation(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := db.HealthHandler(globalPool)(c); err != nil {
		t.Fatalf("health handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status string `json:"status"`
		Pool   struct {
			TotalConns int32 `json:"totalConns"`
			MaxConns   int32 `json:"maxConns"`
		} `json:"pool"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
	if body.Pool.MaxConns <= 0 {
		t.Errorf("pool utilisation missing from payload: %+v", body.Pool)
	}
}

func TestNewPoolVerifiesConnectivity(t *testing.T) {
	ctx := context.Background()

	pool, err := db.NewPool(ctx, globalConnStr, 5, 1)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pool.Close()

	if _, err := db.NewPool(ctx, "not-a-database-url", 5, 1); err == nil {
		t.Fatal("expected error for a malformed database url")
	}
}

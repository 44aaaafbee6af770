package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
)

func (ts *testServer) mintKey(t *testing.T, game catalog.Game, limit int, ttl time.Duration) *licensekeydomain.LicenseKey {
	t.Helper()
	key, err := ts.server.keySvc.Create(context.Background(), licensekeydomain.CreateRequest{
		Game:        game,
		ResellerID:  1,
		DeviceLimit: limit,
		ExpiresAt:   ts.clock.Now().Add(ttl),
	})
	if err != nil {
		t.Fatalf("mint key: %v", err)
	}
	return key
}

func (ts *testServer) postVerify(t *testing.T, body map[string]any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, decoded
}

func TestVerifyEndpointDecisions(t *testing.T) {
	ts := newTestServer(t)
	key := ts.mintKey(t, catalog.GamePUBGMobile, 1, time.Hour)

	status, body := ts.postVerify(t, map[string]any{
		"key": "PBGM-XXXXX-XXXXX-XXXXX", "game": "PUBG MOBILE", "deviceId": "d1",
	})
	if status != http.StatusOK || body["valid"] != false || body["message"] != "Invalid license key" {
		t.Fatalf("unknown key: status=%d body=%v", status, body)
	}

	status, body = ts.postVerify(t, map[string]any{
		"key": key.KeyString, "game": "STANDOFF2", "deviceId": "d1",
	})
	if status != http.StatusOK || body["message"] != "License key is not valid for this game" {
		t.Fatalf("wrong game: status=%d body=%v", status, body)
	}

	status, body = ts.postVerify(t, map[string]any{
		"key": key.KeyString, "game": "PUBG MOBILE", "deviceId": "d1",
	})
	if status != http.StatusOK || body["valid"] != true || body["message"] != "License valid" {
		t.Fatalf("valid key: status=%d body=%v", status, body)
	}
	if body["deviceLimit"] != float64(1) || body["currentDevices"] != float64(1) {
		t.Fatalf("device counters: %v", body)
	}

	// Second device exceeds the limit.
	status, body = ts.postVerify(t, map[string]any{
		"key": key.KeyString, "game": "PUBG MOBILE", "deviceId": "d2",
	})
	if status != http.StatusOK || body["valid"] != false || body["message"] != "Device limit reached for this license key" {
		t.Fatalf("over limit: status=%d body=%v", status, body)
	}

	// The first device keeps working.
	status, body = ts.postVerify(t, map[string]any{
		"key": key.KeyString, "game": "PUBG MOBILE", "deviceId": "d1",
	})
	if status != http.StatusOK || body["valid"] != true {
		t.Fatalf("re-verify: status=%d body=%v", status, body)
	}
}

func TestVerifyEndpointRevokedAndExpired(t *testing.T) {
	ts := newTestServer(t)
	key := ts.mintKey(t, catalog.GameLastIsland, 1, time.Hour)

	if _, err := ts.server.keySvc.Revoke(context.Background(), key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, body := ts.postVerify(t, map[string]any{
		"key": key.KeyString, "game": "LAST ISLAND OF SURVIVAL", "deviceId": "d1",
	})
	if body["message"] != "License key has been revoked" {
		t.Fatalf("revoked: %v", body)
	}

	fresh := ts.mintKey(t, catalog.GameLastIsland, 1, time.Hour)
	ts.clock.Advance(2 * time.Hour)
	_, body = ts.postVerify(t, map[string]any{
		"key": fresh.KeyString, "game": "LAST ISLAND OF SURVIVAL", "deviceId": "d1",
	})
	if body["message"] != "License key has expired" {
		t.Fatalf("expired: %v", body)
	}
	if _, ok := body["expiry"]; !ok {
		t.Fatalf("expired response must carry the expiry: %v", body)
	}
}

func TestVerifyEndpointMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewBufferString(`{"key":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyReadOnlyEndpoint(t *testing.T) {
	ts := newTestServer(t)
	key := ts.mintKey(t, catalog.GameStandoff2, 1, time.Hour)

	get := func(deviceID string) map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/verify/"+key.KeyString+"/STANDOFF2/"+deviceID, nil)
		rec := httptest.NewRecorder()
		ts.engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var decoded map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return decoded
	}

	body := get("d1")
	if body["valid"] != true || body["canRegister"] != true {
		t.Fatalf("free slot: %v", body)
	}

	count, err := ts.server.deviceSvc.CountDevices(context.Background(), key.ID)
	if err != nil {
		t.Fatalf("CountDevices: %v", err)
	}
	if count != 0 {
		t.Fatal("read-only verify registered a device")
	}

	if _, err := ts.server.deviceSvc.TryBind(context.Background(), key.ID, "d1", 1); err != nil {
		t.Fatalf("bind: %v", err)
	}

	body = get("d2")
	if body["valid"] != false || body["canRegister"] != false {
		t.Fatalf("full key: %v", body)
	}
	body = get("d1")
	if body["valid"] != true || body["canRegister"] != true {
		t.Fatalf("bound device: %v", body)
	}
}

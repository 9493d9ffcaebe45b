package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nccaalumbini/cadet-api/internal/auth"
	"github.com/nccaalumbini/cadet-api/internal/config"
	"github.com/nccaalumbini/cadet-api/internal/crypto"
	"github.com/nccaalumbini/cadet-api/internal/db"
	"github.com/nccaalumbini/cadet-api/internal/model"
	"github.com/nccaalumbini/cadet-api/internal/policy"
	"github.com/nccaalumbini/cadet-api/internal/repository"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:       ":0",
		JWTSecret:      "test-secret",
		JWTIssuer:      "test-issuer",
		AccessTokenTTL: 15 * time.Minute,
		StatsCacheTTL:  30 * time.Second,
	}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("CADET_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("CADET_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		t.Fatalf("schema init failed: %v", err)
	}
	return pool
}

func seedUser(t *testing.T, store *repository.Store, role policy.Role, district string, suffix string) model.User {
	hash, err := crypto.HashPassword("dev-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	user := model.User{
		CadetNumber:  "CN-" + string(role)[:4] + "-" + suffix,
		Username:     string(role) + "-" + suffix,
		Email:        string(role) + "." + suffix + "@example.local",
		Role:         string(role),
		PasswordHash: hash,
	}
	if district != "" {
		user.District = &district
	}
	created, err := store.CreateUser(context.Background(), user)
	if err != nil {
		t.Fatalf("seed user error: %v", err)
	}
	return created
}

func mustToken(t *testing.T, cfg config.Config, user model.User) string {
	claims := auth.Claims{Role: user.Role}
	if user.District != nil {
		claims.District = *user.District
	}
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, 10*time.Minute, strconv.FormatInt(user.ID, 10), claims)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func schoolBody(name, district string, sessions []map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":              name,
		"district":          district,
		"municipality":      "Butwal",
		"ward_number":       4,
		"phone_number":      "071-540000",
		"principal_name":    "Principal",
		"principal_contact": "9840000000",
		"training_sessions": sessions,
	}
}

func TestLoginAndMe(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	suffix := uuid.NewString()[:8]
	admin := seedUser(t, store, policy.RoleProvinceAdmin, "", suffix)

	// Neither identifier supplied.
	resp := doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"password": "dev-password"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	// Wrong password.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": admin.Email, "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	// Unknown user is indistinguishable from a wrong password.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": "nobody." + suffix + "@example.local", "password": "dev-password"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	// Login by email.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"email": admin.Email, "password": "dev-password"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var tokenResp tokenResponse
	decodeBody(t, resp, &tokenResp)
	if tokenResp.AccessToken == "" || tokenResp.TokenType != "bearer" {
		t.Fatalf("unexpected token response: %+v", tokenResp)
	}

	// Login by username works too.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]string{"username": admin.Username, "password": "dev-password"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// The issued token authenticates /users/me.
	resp = doReq(t, http.MethodGet, app.URL+"/users/me", tokenResp.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var me userResponse
	decodeBody(t, resp, &me)
	if me.ID != admin.ID || me.Email != admin.Email {
		t.Fatalf("unexpected profile: %+v", me)
	}

	// Missing and garbage tokens are both a single 401.
	resp = doReq(t, http.MethodGet, app.URL+"/users/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/users/me", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateUserDistrictForcing(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	suffix := uuid.NewString()[:8]
	district := "Kathmandu-" + suffix
	districtAdmin := seedUser(t, store, policy.RoleDistrictAdmin, district, suffix)
	plain := seedUser(t, store, policy.RoleUser, "", suffix)

	adminToken := mustToken(t, cfg, districtAdmin)
	plainToken := mustToken(t, cfg, plain)

	// Plain users may not create accounts.
	resp := doReq(t, http.MethodPost, app.URL+"/users/create", plainToken, map[string]interface{}{
		"cadet_number": "CN-X-" + suffix,
		"username":     "x-" + suffix,
		"email":        "x." + suffix + "@example.local",
		"password":     "dev-password",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// A district admin requesting another district gets their own, silently.
	resp = doReq(t, http.MethodPost, app.URL+"/users/create", adminToken, map[string]interface{}{
		"cadet_number": "CN-A-" + suffix,
		"username":     "created-" + suffix,
		"email":        "created." + suffix + "@example.local",
		"password":     "dev-password",
		"district":     "Morang",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var created userResponse
	decodeBody(t, resp, &created)
	if created.District == nil || *created.District != district {
		t.Fatalf("expected district forced to %q, got %v", district, created.District)
	}

	// A district admin cannot mint a province admin.
	resp = doReq(t, http.MethodPost, app.URL+"/users/create", adminToken, map[string]interface{}{
		"cadet_number": "CN-B-" + suffix,
		"username":     "escalate-" + suffix,
		"email":        "escalate." + suffix + "@example.local",
		"password":     "dev-password",
		"role":         "province_admin",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Duplicate email is a 400 with a specific code.
	resp = doReq(t, http.MethodPost, app.URL+"/users/create", adminToken, map[string]interface{}{
		"cadet_number": "CN-C-" + suffix,
		"username":     "duplicate-" + suffix,
		"email":        "created." + suffix + "@example.local",
		"password":     "dev-password",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var errResp map[string]string
	decodeBody(t, resp, &errResp)
	if errResp["error"] != "email_taken" {
		t.Fatalf("expected email_taken, got %q", errResp["error"])
	}

	// Unknown role is rejected outright.
	resp = doReq(t, http.MethodPost, app.URL+"/users/create", adminToken, map[string]interface{}{
		"cadet_number": "CN-D-" + suffix,
		"username":     "badrole-" + suffix,
		"email":        "badrole." + suffix + "@example.local",
		"password":     "dev-password",
		"role":         "warlord",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSchoolLifecycle(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	suffix := uuid.NewString()[:8]
	province := seedUser(t, store, policy.RoleProvinceAdmin, "", suffix)
	provinceToken := mustToken(t, cfg, province)

	name := "Shree School " + suffix
	sessions := []map[string]interface{}{
		{"ncc_batch": "Batch 12", "start_date": "2025-01-15", "division": "junior"},
		{"ncc_batch": "Batch 13", "start_date": "2025-02-01", "division": "senior"},
	}

	resp := doReq(t, http.MethodPost, app.URL+"/schools/", provinceToken, schoolBody(name, "Rupandehi-"+suffix, sessions))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var school schoolResponse
	decodeBody(t, resp, &school)
	if len(school.TrainingSessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(school.TrainingSessions))
	}

	// Second school with the same name is rejected.
	resp = doReq(t, http.MethodPost, app.URL+"/schools/", provinceToken, schoolBody(name, "Rupandehi-"+suffix, nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate name, got %d", resp.StatusCode)
	}

	// Partial update plus a full session replacement.
	resp = doReq(t, http.MethodPut, fmt.Sprintf("%s/schools/%d", app.URL, school.ID), provinceToken, map[string]interface{}{
		"notes": "updated",
		"training_sessions": []map[string]interface{}{
			{"ncc_batch": "Batch 14", "start_date": "2026-01-10", "division": "senior"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var updated schoolResponse
	decodeBody(t, resp, &updated)
	if updated.Notes == nil || *updated.Notes != "updated" {
		t.Fatalf("expected notes to be updated")
	}
	if len(updated.TrainingSessions) != 1 || updated.TrainingSessions[0].NCCBatch != "Batch 14" {
		t.Fatalf("expected sessions to be replaced, got %+v", updated.TrainingSessions)
	}
	if updated.Name != name {
		t.Fatalf("expected untouched fields to survive a partial update")
	}

	// Soft delete keeps the record readable but inactive.
	resp = doReq(t, http.MethodDelete, fmt.Sprintf("%s/schools/%d", app.URL, school.ID), provinceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/schools/%d", app.URL, school.ID), provinceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected soft-deleted school to stay readable, got %d", resp.StatusCode)
	}
	var deleted schoolResponse
	decodeBody(t, resp, &deleted)
	if deleted.IsActive {
		t.Fatalf("expected is_active=false after delete")
	}

	// Missing school: 404 for an authorized role.
	resp = doReq(t, http.MethodGet, app.URL+"/schools/999999999", provinceToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSchoolScoping(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	suffix := uuid.NewString()[:8]
	homeDistrict := "Kathmandu-" + suffix
	otherDistrict := "Morang-" + suffix

	province := seedUser(t, store, policy.RoleProvinceAdmin, "", suffix)
	districtAdmin := seedUser(t, store, policy.RoleDistrictAdmin, homeDistrict, suffix)
	plain := seedUser(t, store, policy.RoleUser, "", suffix)

	provinceToken := mustToken(t, cfg, province)
	districtToken := mustToken(t, cfg, districtAdmin)
	plainToken := mustToken(t, cfg, plain)

	resp := doReq(t, http.MethodPost, app.URL+"/schools/", provinceToken, schoolBody("Home School "+suffix, homeDistrict, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var home schoolResponse
	decodeBody(t, resp, &home)

	resp = doReq(t, http.MethodPost, app.URL+"/schools/", provinceToken, schoolBody("Away School "+suffix, otherDistrict, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var away schoolResponse
	decodeBody(t, resp, &away)

	// A district admin only ever sees their own district.
	resp = doReq(t, http.MethodGet, app.URL+"/schools/?limit=500", districtToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var listed schoolListResponse
	decodeBody(t, resp, &listed)
	for _, item := range listed.Items {
		if item.District != homeDistrict {
			t.Fatalf("district admin received school from %q", item.District)
		}
	}

	// The province admin can filter down to the away district.
	resp = doReq(t, http.MethodGet, app.URL+"/schools/?district="+otherDistrict, provinceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &listed)
	if listed.Total != 1 || listed.Items[0].ID != away.ID {
		t.Fatalf("expected exactly the away school, got %+v", listed)
	}

	// Out-of-district reads and writes are rejected, in-district writes work.
	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/schools/%d", app.URL, away.ID), districtToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPut, fmt.Sprintf("%s/schools/%d", app.URL, away.ID), districtToken, map[string]interface{}{"notes": "nope"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPut, fmt.Sprintf("%s/schools/%d", app.URL, home.ID), districtToken, map[string]interface{}{"notes": "ours"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	// But not moving the school to a foreign district.
	resp = doReq(t, http.MethodPut, fmt.Sprintf("%s/schools/%d", app.URL, home.ID), districtToken, map[string]interface{}{"district": otherDistrict})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Only the province admin may delete; the role gate fires before lookup.
	resp = doReq(t, http.MethodDelete, fmt.Sprintf("%s/schools/%d", app.URL, home.ID), districtToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, app.URL+"/schools/999999999", districtToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before existence check, got %d", resp.StatusCode)
	}

	// Plain users have no school access at all.
	resp = doReq(t, http.MethodGet, app.URL+"/schools/", plainToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/schools/%d", app.URL, home.ID), plainToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSchoolStats(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	suffix := uuid.NewString()[:8]
	province := seedUser(t, store, policy.RoleProvinceAdmin, "", suffix)
	provinceToken := mustToken(t, cfg, province)

	resp := doReq(t, http.MethodGet, app.URL+"/schools/stats/", provinceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var before statsResponse
	decodeBody(t, resp, &before)

	sessions := []map[string]interface{}{
		{"ncc_batch": "Batch 21", "start_date": "2025-03-01", "division": "junior"},
		{"ncc_batch": "Batch 22", "start_date": "2025-04-01", "division": "senior"},
	}
	resp = doReq(t, http.MethodPost, app.URL+"/schools/", provinceToken, schoolBody("Stats School "+suffix, "Palpa-"+suffix, sessions))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var school schoolResponse
	decodeBody(t, resp, &school)

	resp = doReq(t, http.MethodGet, app.URL+"/schools/stats/", provinceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var after statsResponse
	decodeBody(t, resp, &after)

	if after.TotalSchools != before.TotalSchools+1 {
		t.Fatalf("expected one more school, got %d -> %d", before.TotalSchools, after.TotalSchools)
	}
	if after.ActiveSchools != before.ActiveSchools+1 {
		t.Fatalf("expected one more active school")
	}
	if after.TotalCadets != before.TotalCadets+2*cadetsPerSession {
		t.Fatalf("expected cadet estimate to grow by %d, got %d -> %d", 2*cadetsPerSession, before.TotalCadets, after.TotalCadets)
	}

	// Soft delete leaves the total but shrinks the active count.
	resp = doReq(t, http.MethodDelete, fmt.Sprintf("%s/schools/%d", app.URL, school.ID), provinceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/schools/stats/", provinceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var final statsResponse
	decodeBody(t, resp, &final)
	if final.TotalSchools != after.TotalSchools {
		t.Fatalf("expected total to be unchanged by soft delete")
	}
	if final.ActiveSchools != after.ActiveSchools-1 {
		t.Fatalf("expected active count to drop after soft delete")
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablemgr/internal/models"
	"tablemgr/internal/session"
	"tablemgr/internal/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := zerolog.New(io.Discard)
	base := storage.NewMemoryStore("")
	factory := func(prefix string) storage.Store {
		return base.WithPrefix(prefix)
	}
	server := NewServer(context.Background(), Options{
		BasePrefix:         "tableMgr_",
		DefaultDuration:    90,
		RestaurantDefaults: models.DefaultRestaurantInfo(),
		RateLimit:          1000,
		RateBurst:          1000,
	}, factory, session.NewStore(0), &logger)
	return server.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(blob)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/login", "", gin.H{"user": "alex"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/tables", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tables", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSeededDataset(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/tables", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tables   []models.Table       `json:"tables"`
		Statuses []models.TableStatus `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tables, 3)
	assert.Len(t, resp.Statuses, 3)
}

func TestTableLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/tables", token, gin.H{
		"shape": "square", "x": 200, "y": 200, "section": "patio",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var table models.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.Equal(t, "T4", table.ID, "seeded plan ends at T3")
	assert.Equal(t, 4, table.Capacity)

	rec = doJSON(t, router, http.MethodPatch, "/api/tables/"+table.ID, token, gin.H{"capacity": 8})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/tables/"+table.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/tables/"+table.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/tables", token, gin.H{"shape": "octagon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", token, gin.H{
		"guestName": "New Guest", "phone": "555-0000",
		"date": "2099-01-01", "time": "20:00", "partySize": 2, "tableId": "T3",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var booking models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))
	assert.Equal(t, models.BookingConfirmed, booking.Status)
	assert.Equal(t, 90, booking.Duration)

	rec = doJSON(t, router, http.MethodGet, "/api/bookings?date=2099-01-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Bookings []models.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Bookings, 1)

	rec = doJSON(t, router, http.MethodDelete, "/api/bookings/"+booking.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/bookings/"+booking.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("RejectsTablelessBooking", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/bookings", token, gin.H{
			"guestName": "No Table", "date": "2099-01-01", "time": "20:00", "partySize": 2,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWalkInAndStats(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/walkins", token, gin.H{
		"tableId": "T3", "guestName": "Drop In", "partySize": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalCapacity int `json:"totalCapacity"`
		CurrentGuests int `json:"currentGuests"`
		OccupancyPct  int `json:"occupancyPct"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 12, stats.TotalCapacity, "seeded capacity 2+4+6")
	assert.Equal(t, 5, stats.CurrentGuests)
	assert.Equal(t, 42, stats.OccupancyPct)
}

func TestChangeTableStatusEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	// T3 is seeded available; send it to cleaning, then an invalid jump must 409.
	rec := doJSON(t, router, http.MethodPost, "/api/tables/T3/status", token, gin.H{"status": "cleaning"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/tables/T3/status", token, gin.H{"status": "reserved"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRestaurantSelectionIsolatesData(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/restaurant/select", token, gin.H{"restaurantId": "downtown"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The fresh namespace gets its own seeded plan; adding a table here
	// must not leak into another restaurant.
	rec = doJSON(t, router, http.MethodPost, "/api/tables", token, gin.H{"shape": "round"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/restaurant/select", token, gin.H{"restaurantId": "uptown"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tables", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Tables []models.Table `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tables, 3)
}

func TestSettingsEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/settings", token, gin.H{"name": "Chez Test"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/settings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info models.RestaurantInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "Chez Test", info.Name)
	assert.Equal(t, "10:00", info.OpeningTime)

	rec = doJSON(t, router, http.MethodGet, "/api/settings/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	exported := rec.Body.Bytes()

	rec = doJSON(t, router, http.MethodPost, "/api/settings/reset", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/settings/import", bytes.NewReader(exported))
	req.Header.Set(sessionHeader, token)
	imp := httptest.NewRecorder()
	router.ServeHTTP(imp, req)
	require.Equal(t, http.StatusOK, imp.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/settings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "Chez Test", info.Name)

	t.Run("BadImport", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/settings/import", bytes.NewReader([]byte("{broken")))
		req.Header.Set(sessionHeader, token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatsFollowDatasetReplacement(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	// Work in a lazily created namespace, not the default one.
	rec := doJSON(t, router, http.MethodPost, "/api/restaurant/select", token, gin.H{"restaurantId": "harbor"})
	require.Equal(t, http.StatusOK, rec.Code)

	blob := []byte(`{
		"tables": [{"id": "T1", "capacity": 4}],
		"tableStatuses": [{"tableId": "T1", "status": "occupied", "reservation": "B1"}],
		"bookings": [{"id": "B1", "partySize": 4, "tableId": "T1"}],
		"appInitialized": true
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/settings/import", bytes.NewReader(blob))
	req.Header.Set(sessionHeader, token)
	imp := httptest.NewRecorder()
	router.ServeHTTP(imp, req)
	require.Equal(t, http.StatusOK, imp.Code)

	// Stats reflect the imported dataset right away.
	rec = doJSON(t, router, http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalCapacity int `json:"totalCapacity"`
		CurrentGuests int `json:"currentGuests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.TotalCapacity)
	assert.Equal(t, 4, stats.CurrentGuests)

	rec = doJSON(t, router, http.MethodPost, "/api/settings/reset", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.CurrentGuests)
}

func TestAvailabilityEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/tables/available?partySize=5&date=2099-01-01&time=18:00", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tables []models.Table `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tables, 1)
	assert.Equal(t, "T3", resp.Tables[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/tables/available?partySize=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDayGridEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/bookings/grid?date=2099-01-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var grid struct {
		Date      string `json:"date"`
		StartHour int    `json:"startHour"`
		EndHour   int    `json:"endHour"`
		Rows      []struct {
			TableID string `json:"tableId"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grid))
	assert.Equal(t, "2099-01-01", grid.Date)
	assert.Equal(t, 10, grid.StartHour)
	assert.Equal(t, 22, grid.EndHour)
	assert.Len(t, grid.Rows, 3)
}

func TestDayReportEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/settings/report?date=2099-01-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings_2099-01-01.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestLogout(t *testing.T) {
	router := newTestRouter(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tables", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tablemgr/internal/dashboard"
	"tablemgr/internal/floorplan"
	"tablemgr/internal/ledger"
	"tablemgr/internal/models"
	"tablemgr/internal/report"
	"tablemgr/internal/session"
	"tablemgr/internal/storage"
)

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, floorplan.ErrTableNotFound), errors.Is(err, ledger.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidRequest), errors.Is(err, models.ErrNoTableSelected), errors.Is(err, storage.ErrBadImport):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dashboard.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// --- auth ---

type loginRequest struct {
	User string `json:"user" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}

	sess := s.sessions.Login(req.User)
	s.logger.Info().Str("user", req.User).Msg("user logged in")
	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"user":  sess.User,
	})
}

func (s *Server) logout(c *gin.Context) {
	token := c.GetHeader(sessionHeader)
	if token != "" {
		s.sessions.Logout(token)
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

type selectRestaurantRequest struct {
	RestaurantID string `json:"restaurantId" binding:"required"`
}

func (s *Server) selectRestaurant(c *gin.Context) {
	var req selectRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "restaurantId is required"})
		return
	}

	sess := c.MustGet(ctxSessionKey).(*session.Session)
	sess.SelectRestaurant(req.RestaurantID)

	prefix := sess.Prefix(s.opts.BasePrefix)
	if _, err := s.AppFor(c.Request.Context(), prefix); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurantId": req.RestaurantID})
}

// --- tables ---

func (s *Server) listTables(c *gin.Context) {
	app := appFrom(c)
	tables, err := app.Registry.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	statuses, err := app.Registry.AllStatuses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables, "statuses": statuses})
}

func (s *Server) createTable(c *gin.Context) {
	var req models.CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	table, err := appFrom(c).Registry.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

func (s *Server) updateTable(c *gin.Context) {
	var req models.UpdateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	table, err := appFrom(c).Registry.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (s *Server) deleteTable(c *gin.Context) {
	if err := appFrom(c).Registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) clearFloorPlan(c *gin.Context) {
	if err := appFrom(c).Registry.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Server) findAvailableTables(c *gin.Context) {
	partySize, err := strconv.Atoi(c.Query("partySize"))
	if err != nil || partySize <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "partySize must be a positive integer"})
		return
	}
	date := c.Query("date")
	timeStr := c.Query("time")
	duration, _ := strconv.Atoi(c.DefaultQuery("duration", "0"))

	tables, err := appFrom(c).Registry.FindAvailable(c.Request.Context(), partySize, date, timeStr, duration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

type changeStatusRequest struct {
	Status        models.TableState `json:"status" binding:"required"`
	ReservationID string            `json:"reservationId"`
}

func (s *Server) changeTableStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := appFrom(c).Dashboard.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status, req.ReservationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tableId": c.Param("id"), "status": req.Status})
}

// --- bookings ---

func (s *Server) listBookings(c *gin.Context) {
	date := c.Query("date")
	search := c.Query("search")
	bucket := models.PartySizeBucket(c.DefaultQuery("partySize", string(models.BucketAny)))

	bookings, err := appFrom(c).Ledger.ListFiltered(c.Request.Context(), date, search, bucket)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (s *Server) upcomingBookings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	bookings, err := appFrom(c).Ledger.Upcoming(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (s *Server) dayGrid(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	grid, err := appFrom(c).Ledger.DayGrid(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

func (s *Server) createBooking(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	booking, err := appFrom(c).Ledger.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (s *Server) updateBooking(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	booking, err := appFrom(c).Ledger.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (s *Server) deleteBooking(c *gin.Context) {
	if err := appFrom(c).Ledger.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) seatWalkIn(c *gin.Context) {
	var req models.WalkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	booking, err := appFrom(c).Ledger.SeatWalkIn(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// --- dashboard ---

func (s *Server) dashboardStats(c *gin.Context) {
	c.JSON(http.StatusOK, appFrom(c).Dashboard.Stats())
}

// --- settings ---

func (s *Server) getSettings(c *gin.Context) {
	info, err := appFrom(c).Settings.Info(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) saveSettings(c *gin.Context) {
	var info models.RestaurantInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := appFrom(c).Settings.SaveInfo(c.Request.Context(), info)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) exportData(c *gin.Context) {
	blob, err := appFrom(c).Settings.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("restaurant_data_%s.json", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", blob)
}

func (s *Server) importData(c *gin.Context) {
	blob, err := io.ReadAll(io.LimitReader(c.Request.Body, 10<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := appFrom(c).Settings.Import(c.Request.Context(), blob); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "imported"})
}

func (s *Server) resetData(c *gin.Context) {
	if err := appFrom(c).Settings.Reset(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) dayReport(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	w, err := report.DayReport(c.Request.Context(), appFrom(c).Ledger, date)
	if err != nil {
		respondError(c, err)
		return
	}
	defer w.Close()

	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("bookings_%s.xlsx", date)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

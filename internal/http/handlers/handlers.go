package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/quantaops/l1-backend/internal/db"
	"github.com/quantaops/l1-backend/internal/entity"
	"github.com/quantaops/l1-backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Processor *service.Processor
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// @Summary Health check
// @Description Verifies the database is reachable
// @Tags system
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "connected"})
}

// Create is the uniform insert handler: validate against the entity's
// column rules, apply defaults, run one INSERT ... RETURNING * and echo
// the persisted row.
func (h *Handler) Create(e entity.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
			return
		}

		cols, args, err := e.InsertArgs(h.Validator, payload)
		if err != nil {
			var verr *entity.ValidationError
			if errors.As(err, &verr) {
				writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+e.Name+" payload", verr.Fields)
				return
			}
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+e.Name+" payload", err.Error())
			return
		}

		row, err := h.Store.InsertReturning(c.Request.Context(), e, cols, args)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "INSERT_FAILED", "Insert failed", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "inserted", "data": row})
	}
}

// List is the uniform paginated listing, newest first. An empty table
// answers an empty array, never an error. Orders additionally accept an
// exact-match ?email= filter that bypasses pagination.
func (h *Handler) List(e entity.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if e.EmailFilter {
			if email := c.Query("email"); email != "" {
				rows, err := h.Store.ListOrdersByEmail(c.Request.Context(), email)
				if err != nil {
					writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list "+e.Path, err.Error())
					return
				}
				c.JSON(http.StatusOK, rows)
				return
			}
		}

		limit, offset := parseListParams(c)
		rows, err := h.Store.List(c.Request.Context(), e, limit, offset)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list "+e.Path, err.Error())
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// Detail fetches a single row by key. A missing row is a 404, distinct
// from any other persistence failure.
func (h *Handler) Detail(e entity.Entity) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key any = c.Param("key")
		if !e.StringKey {
			id, err := strconv.ParseInt(c.Param("key"), 10, 64)
			if err != nil {
				writeError(c, http.StatusBadRequest, "INVALID_REQUEST", e.Key+" must be an integer", nil)
				return
			}
			key = id
		}

		row, err := h.Store.GetByKey(c.Request.Context(), e, key)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(c, http.StatusNotFound, "NOT_FOUND", e.Name+" not found", nil)
				return
			}
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get "+e.Name, err.Error())
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

// @Summary Seed demo orders
// @Description Inserts the fixture order set; safe to re-run
// @Tags system
// @Produce json
// @Success 200 {object} map[string]any
// @Router /seed-data [post]
func (h *Handler) SeedData(c *gin.Context) {
	if err := h.Store.SeedOrders(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, "SEED_FAILED", "Failed to seed orders", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "seeded", "message": "Dummy orders created"})
}

// @Summary Process pending emails
// @Description Classifies new inbox rows and creates cases
// @Tags pipeline
// @Produce json
// @Success 200 {object} service.Summary
// @Router /process-emails [post]
func (h *Handler) ProcessEmails(c *gin.Context) {
	summary, err := h.Processor.ProcessPending(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Email processing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseListParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

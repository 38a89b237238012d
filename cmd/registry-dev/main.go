// registry-dev is an in-memory stand-in for the remote opportunity registry,
// for developing and demoing the agent without the real backend. It
// implements the same surface the agent's registry client speaks: lookup,
// upsert and user deletion, keyed by external id.
package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/klop2495/art-grants-agent/internal/models"
)

type storedRecord struct {
	ID        string                   `json:"id"`
	Record    models.OpportunityRecord `json:"record"`
	DeletedAt *time.Time               `json:"deletedAt,omitempty"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

type server struct {
	mu      sync.RWMutex
	byExtID map[string]*storedRecord
	apiKey  string
}

func main() {
	addr := os.Getenv("REGISTRY_DEV_ADDR")
	if addr == "" {
		addr = ":8091"
	}

	s := &server{
		byExtID: map[string]*storedRecord{},
		apiKey:  os.Getenv("REGISTRY_DEV_API_KEY"),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	api := e.Group("/api/opportunities")
	if s.apiKey != "" {
		api.Use(s.requireKey)
	}
	api.GET("/:externalID", s.get)
	api.PUT("/:externalID", s.put)
	api.DELETE("/:externalID", s.delete)
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	log.Printf("[registry-dev] listening on %s", addr)
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[registry-dev] server error: %v", err)
	}
}

func (s *server) requireKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.apiKey {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
		}
		return next(c)
	}
}

func (s *server) get(c echo.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byExtID[c.Param("externalID")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":          rec.ID,
		"external_id": rec.Record.ExternalID,
		"deleted_at":  rec.DeletedAt,
	})
}

func (s *server) put(c echo.Context) error {
	externalID := c.Param("externalID")

	var body models.OpportunityRecord
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record payload")
	}
	if body.ExternalID != "" && body.ExternalID != externalID {
		return echo.NewHTTPError(http.StatusBadRequest, "external id mismatch")
	}
	body.ExternalID = externalID

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byExtID[externalID]
	if ok && existing.DeletedAt != nil {
		// User deletions win over re-ingestion.
		return c.JSON(http.StatusOK, echo.Map{
			"id":     existing.ID,
			"action": "skipped",
			"reason": "deleted_by_user",
		})
	}

	action := "created"
	if ok {
		action = "updated"
		existing.Record = body
		existing.UpdatedAt = time.Now().UTC()
		return c.JSON(http.StatusOK, echo.Map{"id": existing.ID, "action": action})
	}

	rec := &storedRecord{
		ID:        uuid.NewString(),
		Record:    body,
		UpdatedAt: time.Now().UTC(),
	}
	s.byExtID[externalID] = rec
	return c.JSON(http.StatusCreated, echo.Map{"id": rec.ID, "action": action})
}

// delete emulates a registry user removing a record. The record stays with
// a deletion marker so subsequent upserts are refused.
func (s *server) delete(c echo.Context) error {
	externalID := c.Param("externalID")

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byExtID[externalID]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	now := time.Now().UTC()
	rec.DeletedAt = &now
	return c.NoContent(http.StatusNoContent)
}

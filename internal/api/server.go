// Package api exposes scans, snapshots and exports over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/export"
	"go-hiring-tracker/internal/lock"
	"go-hiring-tracker/internal/metrics"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/region"
	"go-hiring-tracker/internal/snapshot"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service is the part of the tracker the API drives.
type Service interface {
	Run(ctx context.Context, portal models.Portal) (diff.Result, error)
	Snapshot(ctx context.Context, key models.SnapshotKey) (models.Snapshot, error)
}

// Latest keeps the most recent result per snapshot key. It is a tracker
// reporter, so scheduled runs show up too.
type Latest struct {
	mu      sync.RWMutex
	results map[models.SnapshotKey]diff.Result
}

func NewLatest() *Latest {
	return &Latest{results: map[models.SnapshotKey]diff.Result{}}
}

func (l *Latest) Report(_ context.Context, res diff.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[res.Key()] = res
	return nil
}

func (l *Latest) Get(key models.SnapshotKey) (diff.Result, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.results[key]
	return res, ok
}

// All returns the results ordered by key.
func (l *Latest) All() []diff.Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]diff.Result, 0, len(l.results))
	for _, res := range l.results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

type Server struct {
	svc     Service
	portals []models.Portal
	regions region.Regions
	latest  *Latest
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewServer(svc Service, portals []models.Portal, regions region.Regions, latest *Latest, m *metrics.Metrics, log *zap.Logger) *Server {
	if latest == nil {
		latest = NewLatest()
	}
	return &Server{svc: svc, portals: portals, regions: regions, latest: latest, metrics: m, log: log}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Hiring tracker API is running!",
			"status":  "healthy",
		})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/portals", s.listPortals)
	r.GET("/results", s.listResults)
	r.POST("/scans/:portal", s.scan)
	r.GET("/snapshots/:portal/:category", s.getSnapshot)
	r.GET("/export", s.export)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()))
	}
}

func (s *Server) named(name, category string) []models.Portal {
	var out []models.Portal
	for _, p := range s.portals {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Server) listPortals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"portals": s.portals})
}

func (s *Server) listResults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": s.latest.All()})
}

type scanError struct {
	Category string `json:"category"`
	Error    string `json:"error"`
}

// scan runs every category of a portal, or only ?category=.
func (s *Server) scan(c *gin.Context) {
	portals := s.named(c.Param("portal"), c.Query("category"))
	if len(portals) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown portal"})
		return
	}

	// a dropped client must not abort a scan halfway
	ctx := context.WithoutCancel(c.Request.Context())

	results := []diff.Result{}
	failures := []scanError{}
	status := http.StatusOK
	for _, p := range portals {
		res, err := s.svc.Run(ctx, p)
		if res.Portal != "" {
			results = append(results, res)
		}
		if err == nil {
			continue
		}
		s.log.Warn("scan via api failed", zap.String("portal", p.Name), zap.String("category", p.Category), zap.Error(err))
		failures = append(failures, scanError{Category: p.Category, Error: err.Error()})
		switch {
		case errors.Is(err, lock.ErrLocked):
			status = http.StatusConflict
		case status == http.StatusOK:
			status = http.StatusBadGateway
		}
	}

	c.JSON(status, gin.H{"results": results, "errors": failures})
}

func (s *Server) getSnapshot(c *gin.Context) {
	portals := s.named(c.Param("portal"), c.Param("category"))
	if len(portals) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown portal or category"})
		return
	}

	snap, err := s.svc.Snapshot(c.Request.Context(), portals[0].Key())
	switch {
	case errors.Is(err, snapshot.ErrPolicyMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snap.Jobs == nil {
		snap.Jobs = []models.Job{}
	}

	body := gin.H{"snapshot": snap}
	if res, ok := s.latest.Get(snap.SnapshotKey); ok {
		body["latest"] = res
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) export(c *gin.Context) {
	sheets, err := Sheets(c.Request.Context(), s.svc, s.portals, s.latest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f, err := export.Workbook(sheets, s.regions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", `attachment; filename="jobs.xlsx"`)
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		s.log.Error("write workbook failed", zap.Error(err))
	}
}

// Sheets loads one export sheet per portal, attaching the latest result
// when there is one. latest may be nil.
func Sheets(ctx context.Context, svc Service, portals []models.Portal, latest *Latest) ([]export.Sheet, error) {
	sheets := make([]export.Sheet, 0, len(portals))
	for _, p := range portals {
		snap, err := svc.Snapshot(ctx, p.Key())
		if err != nil && !errors.Is(err, snapshot.ErrCorrupt) {
			return nil, err
		}
		sheet := export.Sheet{Snapshot: snap}
		if latest != nil {
			if res, ok := latest.Get(p.Key()); ok {
				sheet.Result = &res
			}
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

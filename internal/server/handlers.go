package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geolabel/conflator/internal/core"
	"github.com/geolabel/conflator/internal/core/assign"
	"github.com/geolabel/conflator/internal/core/model"
	"github.com/geolabel/conflator/internal/core/store"
)

// Session identity travels on every request as X-Annotator / X-Label-Mode,
// set by the UI after /start-session. Mode defaults to 'unlabeled'.
func (s *Server) session(c *gin.Context) (core.Session, bool) {
	mode := model.Mode(c.GetHeader("X-Label-Mode"))
	if mode == "" {
		mode = model.ModeUnlabeled
	}

	sess, err := s.Engine.StartSession(c.GetHeader("X-Annotator"), mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return core.Session{}, false
	}
	return sess, true
}

type StartSessionRequest struct {
	Username string `json:"username"`
	Mode     string `json:"mode"`
}

func (s *Server) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	sess, err := s.Engine.StartSession(req.Username, model.Mode(req.Mode))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"annotator": sess.Annotator, "mode": sess.Mode})
}

func (s *Server) NextPair(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	k, err := s.Engine.NextPair(sess)
	if errors.Is(err, assign.ErrNoMoreItems) {
		c.JSON(http.StatusOK, gin.H{"done": true})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"id_existing": k.IDExisting, "id_new": k.IDNew}
	if after, ok := s.Engine.PairAfterNext(sess); ok {
		resp["after_next"] = gin.H{"id_existing": after.IDExisting, "id_new": after.IDNew}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) NextNeighborhood(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	id, err := s.Engine.NextNeighborhood(sess)
	if errors.Is(err, assign.ErrNoMoreItems) {
		c.JSON(http.StatusOK, gin.H{"done": true})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"id": id}
	if after, ok := s.Engine.NeighborhoodAfterNext(sess); ok {
		resp["after_next"] = after
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ShowPair(c *gin.Context) {
	k := model.EdgeKey{IDExisting: c.Param("id_existing"), IDNew: c.Param("id_new")}

	ds := s.Engine.Store.Dataset()
	if !ds.ValidPair(k) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Candidate pair not found"})
		return
	}

	existing, _ := ds.ExistingBuilding(k.IDExisting)
	newer, _ := ds.NewBuilding(k.IDNew)
	c.JSON(http.StatusOK, gin.H{
		"id_existing":       k.IDExisting,
		"id_new":            k.IDNew,
		"geometry_existing": existing.Geometry,
		"geometry_new":      newer.Geometry,
	})
}

func (s *Server) ShowNeighborhood(c *gin.Context) {
	id := c.Param("id")

	ds := s.Engine.Store.Dataset()
	nbh := ds.NeighborhoodByID(id)
	if nbh == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Neighborhood not found"})
		return
	}

	existing := make([]model.Building, 0, len(nbh.ExistingIDs))
	for _, bid := range nbh.ExistingIDs {
		if b, ok := ds.ExistingBuilding(bid); ok {
			existing = append(existing, b)
		}
	}
	newer := make([]model.Building, 0, len(nbh.NewIDs))
	for _, bid := range nbh.NewIDs {
		if b, ok := ds.NewBuilding(bid); ok {
			newer = append(newer, b)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"existing": existing,
		"new":      newer,
		"edges":    nbh.InitialEdges,
		"current":  s.Engine.Store.CurrentEdges(id),
	})
}

type StoreLabelRequest struct {
	IDExisting string `json:"id_existing"`
	IDNew      string `json:"id_new"`
	Match      string `json:"match"`
}

func (s *Server) StoreLabel(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req StoreLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	k := model.EdgeKey{IDExisting: req.IDExisting, IDNew: req.IDNew}
	next, hasNext, err := s.Engine.SubmitPairLabel(c.Request.Context(), sess, k, model.Label(req.Match))
	if err != nil {
		s.submitError(c, err)
		return
	}

	resp := gin.H{"status": "ok", "next_existing_id": "", "next_new_id": ""}
	if hasNext {
		resp["next_existing_id"] = next.IDExisting
		resp["next_new_id"] = next.IDNew
	}
	c.JSON(http.StatusOK, resp)
}

type StoreNeighborhoodRequest struct {
	ID      string          `json:"id"`
	Added   []model.EdgeKey `json:"added"`
	Removed []model.EdgeKey `json:"removed"`
}

func (s *Server) StoreNeighborhood(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req StoreNeighborhoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	next, hasNext, err := s.Engine.SubmitNeighborhoodDiff(c.Request.Context(), sess, req.ID, req.Added, req.Removed)
	if err != nil {
		s.submitError(c, err)
		return
	}

	resp := gin.H{"status": "ok", "next_id": ""}
	if hasNext {
		resp["next_id"] = next
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Scoreboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"annotators": s.Engine.Scoreboard()})
}

func (s *Server) DownloadResults(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="labeled-pairs.csv"`)
	c.Header("Content-Type", "text/csv")
	if err := s.Engine.ExportAggregated(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export results"})
	}
}

func (s *Server) DownloadAnnotations(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="annotations.csv"`)
	c.Header("Content-Type", "text/csv")
	if err := s.Engine.ExportAnnotations(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export annotations"})
	}
}

// submitError maps domain errors to HTTP statuses: validation failures are
// the caller's fault, unknown items are 404s.
func (s *Server) submitError(c *gin.Context, err error) {
	var labelErr *store.InvalidLabelError
	var diffErr *store.InvalidDiffError

	switch {
	case errors.Is(err, store.ErrUnknownItem):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &labelErr), errors.As(err, &diffErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

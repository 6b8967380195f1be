package controller

import (
	"github.com/gin-gonic/gin"

	"azsnap/internal/snapshot/model"
	"azsnap/internal/snapshot/service"
	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/response"
)

// SnapshotController exposes the snapshot API over HTTP.
type SnapshotController struct {
	snapshots *service.SnapshotService
	sweeper   *service.SweepService
	summaries *service.SummaryStore
}

// NewSnapshotController creates a SnapshotController.
// summaries may be nil when no object storage is configured.
func NewSnapshotController(snapshots *service.SnapshotService, sweeper *service.SweepService, summaries *service.SummaryStore) *SnapshotController {
	return &SnapshotController{
		snapshots: snapshots,
		sweeper:   sweeper,
		summaries: summaries,
	}
}

// RegisterRoutes mounts the snapshot API under the given router group.
func (ctrl *SnapshotController) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/snapshots", ctrl.CreateRun)
	group.GET("/snapshots", ctrl.List)
	group.GET("/snapshots/:id", ctrl.Get)
	group.POST("/snapshots/sweep", ctrl.Sweep)
	group.GET("/azure/login", ctrl.Login)
}

// CreateRunRequest is the body of POST /snapshots.
type CreateRunRequest struct {
	ChangeNumber    string   `json:"change_number" binding:"required"`
	Hostnames       []string `json:"hostnames"`
	HostFilePath    string   `json:"host_file_path"`
	ExcludeKeywords []string `json:"exclude_keywords"`
	TTLSeconds      int64    `json:"ttl_seconds"`
}

// CreateRunResponse is the body returned by POST /snapshots.
type CreateRunResponse struct {
	Summary    *model.RunSummary `json:"summary"`
	ReportURL  string            `json:"report_url,omitempty"`
	ReportText string            `json:"report_text"`
}

// CreateRun executes a snapshot run over the requested hosts.
func (ctrl *SnapshotController) CreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	summary, err := ctrl.snapshots.Run(c.Request.Context(), service.RunRequest{
		ChangeNumber:    req.ChangeNumber,
		Hostnames:       req.Hostnames,
		HostFilePath:    req.HostFilePath,
		ExcludeKeywords: req.ExcludeKeywords,
		TTLSeconds:      req.TTLSeconds,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := CreateRunResponse{
		Summary:    summary,
		ReportText: service.RenderSummary(summary),
	}
	if ctrl.summaries != nil {
		// Report upload failures are logged inside Upload; the run itself succeeded.
		if url, err := ctrl.summaries.Upload(c.Request.Context(), summary); err == nil {
			resp.ReportURL = url
		}
	}
	response.Success(c, resp)
}

// Get returns one snapshot record by snapshot resource id.
func (ctrl *SnapshotController) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "snapshot id is required")
		return
	}

	rec, err := ctrl.snapshots.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec)
}

// ListResponse is the body returned by GET /snapshots.
type ListResponse struct {
	Total     int                     `json:"total"`
	Snapshots []*model.SnapshotRecord `json:"snapshots"`
}

// List returns snapshot records, optionally filtered by ?status=.
func (ctrl *SnapshotController) List(c *gin.Context) {
	status := model.Status(c.Query("status"))
	switch status {
	case "", model.StatusPending, model.StatusActive, model.StatusDeleting, model.StatusDeleted, model.StatusFailed:
	default:
		response.BadRequest(c, "unknown status: "+string(status))
		return
	}

	records, err := ctrl.snapshots.List(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ListResponse{Total: len(records), Snapshots: records})
}

// Sweep triggers an immediate sweep of expired snapshots.
func (ctrl *SnapshotController) Sweep(c *gin.Context) {
	result, err := ctrl.sweeper.Sweep(c.Request.Context())
	if err != nil {
		if appErr.GetCode(err) == appErr.SweepInProgress {
			response.ErrorWithCode(c, appErr.SweepInProgress, "")
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Login starts an az device-flow login and returns the verification data.
func (ctrl *SnapshotController) Login(c *gin.Context) {
	info, err := ctrl.snapshots.Login(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, info)
}

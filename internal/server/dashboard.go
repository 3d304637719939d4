package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrepo/devportal/internal/dashboard"
	apierrors "github.com/unrepo/devportal/internal/errors"
	"github.com/unrepo/devportal/internal/middleware"
	"github.com/unrepo/devportal/internal/models"
)

const contextKeyWorkspace = "workspace"

// OpenCreationRequest opens the create dialog
type OpenCreationRequest struct {
	Type models.KeyType `json:"type" binding:"required"`
}

// SetNameRequest updates the draft name
type SetNameRequest struct {
	Name string `json:"name"`
}

// withWorkspace attaches the caller's dashboard workspace, creating it on first use
func (s *APIServer) withWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.GetClaimsFromContext(c)
		w, err := s.registry.Acquire(claims, dashboard.ParseTab(c.Query("tab")))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(contextKeyWorkspace, w)
		c.Next()
	}
}

func workspaceFrom(c *gin.Context) *Workspace {
	return c.MustGet(contextKeyWorkspace).(*Workspace)
}

func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}

// handleDashboard returns the composed view; refresh=true re-fetches keys and usage first
func (s *APIServer) handleDashboard(c *gin.Context) {
	ctrl := workspaceFrom(c).Controller
	if queryBool(c, "refresh") {
		ctrl.Refresh(c.Request.Context())
	}
	if tab := c.Query("select"); tab != "" {
		ctrl.SelectTab(dashboard.ParseTab(tab))
	}
	c.JSON(http.StatusOK, ctrl.View())
}

func (s *APIServer) handleToggleVisibility(c *gin.Context) {
	id := c.Param("id")
	revealed, err := workspaceFrom(c).Controller.ToggleVisibility(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "revealed": revealed})
}

// handleCopyKey marks the key copied and hands the secret to the browser clipboard
func (s *APIServer) handleCopyKey(c *gin.Context) {
	id := c.Param("id")
	secret, err := workspaceFrom(c).Controller.CopyKey(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"key":     secret,
		"copied":  true,
		"message": dashboard.MsgCopied,
	})
}

// handleDeleteKey deletes a key; without confirm=true nothing reaches the backend
func (s *APIServer) handleDeleteKey(c *gin.Context) {
	ctrl := workspaceFrom(c).Controller
	ctx := dashboard.WithConfirmation(c.Request.Context(), queryBool(c, "confirm"))

	if err := ctrl.DeleteKey(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": dashboard.MsgDeleted,
		"view":    ctrl.View(),
	})
}

func (s *APIServer) handleOpenCreation(c *gin.Context) {
	var req OpenCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	ctrl := workspaceFrom(c).Controller
	if err := ctrl.OpenCreation(req.Type); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Creation())
}

func (s *APIServer) handleSetCreationName(c *gin.Context) {
	var req SetNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	ctrl := workspaceFrom(c).Controller
	if err := ctrl.SetCreationName(req.Name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Creation())
}

// handleSubmitCreation generates the drafted key and returns the full secret
// this one time
func (s *APIServer) handleSubmitCreation(c *gin.Context) {
	ctrl := workspaceFrom(c).Controller
	keyType := ctrl.Creation().Type

	res, err := ctrl.SubmitCreation(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusCreated, gin.H{
		"type":     keyType,
		"key":      res.Secret,
		"existing": res.Existing,
		"warning":  dashboard.OneTimeRevealWarning,
		"view":     ctrl.View(),
	})
}

func (s *APIServer) handleCancelCreation(c *gin.Context) {
	ctrl := workspaceFrom(c).Controller
	if err := ctrl.CancelCreation(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Creation())
}

// handleUsage refreshes and returns the usage records
func (s *APIServer) handleUsage(c *gin.Context) {
	ctrl := workspaceFrom(c).Controller
	ctrl.RefreshUsage(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"usage":      ctrl.Usage(),
		"totalCalls": ctrl.TotalCalls(),
	})
}

func (s *APIServer) handleActivity(c *gin.Context) {
	w := workspaceFrom(c)
	if queryBool(c, "refresh") {
		w.Controller.RefreshKeys(c.Request.Context())
	}
	c.JSON(http.StatusOK, w.Sampler.Graph().Snapshot())
}

func (s *APIServer) handleNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": workspaceFrom(c).Notifications.Drain()})
}

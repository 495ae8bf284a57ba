package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"walknav/backend/internal/middleware"
	"walknav/backend/internal/model"
	"walknav/backend/internal/service"
)

type WalkHandler struct {
	walkService *service.WalkService
}

type settingsRequest struct {
	BaseWalkingSpeed float64 `json:"baseWalkingSpeed"`
	PreferredPace    string  `json:"preferredPace"`
}

type estimateRequest struct {
	Origin      *model.LatLng `json:"origin"`
	Destination *model.LatLng `json:"destination"`
	Distance    *float64      `json:"distance"`
	Pace        string        `json:"pace"`
}

type arrivalRequest struct {
	EstimatedTime     int         `json:"estimatedTime"`
	Distance          float64     `json:"distance"`
	Route             model.Route `json:"route"`
	StartTime         time.Time   `json:"startTime"`
	ActualArrivalTime *time.Time  `json:"actualArrivalTime"`
	AdjustMinutes     int         `json:"adjustMinutes"`
}

type favoriteRequest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Coordinates model.LatLng `json:"coordinates"`
	Category    string       `json:"category"`
}

func NewWalkHandler(walkService *service.WalkService) *WalkHandler {
	return &WalkHandler{walkService: walkService}
}

func (h *WalkHandler) GetProfile(c *gin.Context) {
	profile, apiErr := h.walkService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *WalkHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, apiErr := h.walkService.UpdateSettings(c.Request.Context(), middleware.UserID(c), service.UpdateSettingsInput{
		BaseWalkingSpeed: req.BaseWalkingSpeed,
		PreferredPace:    req.PreferredPace,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *WalkHandler) GetSpeed(c *gin.Context) {
	speed, apiErr := h.walkService.RecommendedSpeed(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, speed)
}

func (h *WalkHandler) Estimate(c *gin.Context) {
	var req estimateRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, apiErr := h.walkService.Estimate(c.Request.Context(), middleware.UserID(c), service.EstimateInput{
		Origin:      req.Origin,
		Destination: req.Destination,
		Distance:    req.Distance,
		Pace:        req.Pace,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *WalkHandler) RecordArrival(c *gin.Context) {
	var req arrivalRequest
	if !bindJSON(c, &req) {
		return
	}

	record, apiErr := h.walkService.RecordArrival(c.Request.Context(), middleware.UserID(c), req.toInput())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": record})
}

func (h *WalkHandler) PreviewArrival(c *gin.Context) {
	var req arrivalRequest
	if !bindJSON(c, &req) {
		return
	}

	summary, apiErr := h.walkService.PreviewArrival(req.toInput())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *WalkHandler) GetHistory(c *gin.Context) {
	limit := model.MaxWalkingHistory
	rawLimit := c.Query("limit")
	if rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	records, apiErr := h.walkService.GetHistory(c.Request.Context(), middleware.UserID(c), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *WalkHandler) GetStats(c *gin.Context) {
	stats, apiErr := h.walkService.GetStats(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *WalkHandler) ListFavorites(c *gin.Context) {
	favorites, apiErr := h.walkService.ListFavorites(c.Request.Context(), middleware.UserID(c), c.Query("category"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

func (h *WalkHandler) AddFavorite(c *gin.Context) {
	var req favoriteRequest
	if !bindJSON(c, &req) {
		return
	}

	location, apiErr := h.walkService.AddFavorite(c.Request.Context(), middleware.UserID(c), service.FavoriteInput{
		ID:       req.ID,
		Name:     req.Name,
		Address:  req.Address,
		Lat:      req.Coordinates.Lat,
		Lng:      req.Coordinates.Lng,
		Category: req.Category,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"favorite": location})
}

func (h *WalkHandler) RemoveFavorite(c *gin.Context) {
	if apiErr := h.walkService.RemoveFavorite(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r arrivalRequest) toInput() service.ArrivalInput {
	input := service.ArrivalInput{
		EstimatedTime: r.EstimatedTime,
		Distance:      r.Distance,
		Route:         r.Route,
		StartTime:     r.StartTime,
		AdjustMinutes: r.AdjustMinutes,
	}
	if r.ActualArrivalTime != nil {
		input.ActualArrivalTime = *r.ActualArrivalTime
	}
	return input
}

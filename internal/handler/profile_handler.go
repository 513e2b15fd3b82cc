package handler

import (
	"net/http"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProfileHandler struct {
	profiles repository.ProfileRepositoryInterface
}

func NewProfileHandler(profiles repository.ProfileRepositoryInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url"`
}

// List returns all profiles, or only the ones named by ?ids=a,b,c.
// Unknown ids are left out of the result rather than reported.
func (h *ProfileHandler) List(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		profiles, err := h.profiles.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profiles"})
			return
		}
		c.JSON(http.StatusOK, nonNilProfiles(profiles))
		return
	}

	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile ID format"})
			return
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	profiles, err := h.profiles.ListByIDs(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profiles"})
		return
	}
	c.JSON(http.StatusOK, nonNilProfiles(profiles))
}

// UpdateMe edits the caller's own profile
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	fields := make(map[string]interface{})
	if req.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}

	profile, err := h.profiles.Update(c.Request.Context(), userID, fields)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

func nonNilProfiles(profiles []model.Profile) []model.Profile {
	if profiles == nil {
		return []model.Profile{}
	}
	return profiles
}

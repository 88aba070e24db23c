package projects

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuencahub/hub-backend/internal/areaselect"
	"github.com/cuencahub/hub-backend/internal/auth"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type projectInput struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Status      *Status         `json:"status"`
	Location    *utils.Location `json:"location"`
	Area        *[][]float64    `json:"area"`
	Tags        *[]string       `json:"tags"`
}

// ListProjects returns projects, newest first. Optional filters: status,
// category, tag.
func ListProjects(w http.ResponseWriter, r *http.Request) {
	q := db.DB.Model(&Project{}).Order("created_at DESC")

	if s := r.URL.Query().Get("status"); s != "" {
		if !Status(s).Valid() {
			http.Error(w, errBadStatus.Error(), http.StatusBadRequest)
			return
		}
		q = q.Where("status = ?", s)
	}
	if c := r.URL.Query().Get("category"); c != "" {
		q = q.Where("category = ?", c)
	}
	if tag := r.URL.Query().Get("tag"); tag != "" {
		q = q.Where("? = ANY(tags)", strings.ToLower(tag))
	}

	var projects []Project
	if err := q.Find(&projects).Error; err != nil {
		http.Error(w, "Failed to load projects", http.StatusInternalServerError)
		return
	}
	if err := attachMemberCounts(projects); err != nil {
		http.Error(w, "Failed to load projects", http.StatusInternalServerError)
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	utils.WriteJSON(w, http.StatusOK, projects)
}

// GetProject accepts either the id or the slug.
func GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := loadProject(w, r)
	if !ok {
		return
	}
	one := []Project{*project}
	if err := attachMemberCounts(one); err != nil {
		http.Error(w, "Failed to load project", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, one[0])
}

func CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input projectInput
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == nil || input.Location == nil {
		http.Error(w, "Title and location are required", http.StatusBadRequest)
		return
	}

	project := Project{
		ID:      utils.GenerateUUID(),
		Status:  StatusPlanning,
		OwnerID: userID,
	}
	if err := input.apply(&project); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, Slugify(project.Title))
		if err != nil {
			return err
		}
		project.Slug = slug
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return tx.Create(&Member{ProjectID: project.ID, UserID: userID, Role: RoleOwner}).Error
	})
	if err != nil {
		http.Error(w, "Failed to create project", http.StatusInternalServerError)
		return
	}
	project.MemberCount = 1

	slog.Info("project created", "component", "projects", "project_id", project.ID, "slug", project.Slug)
	utils.WriteJSON(w, http.StatusCreated, project)
}

// UpdateProject is a partial update; only the owner may call it. The slug is
// kept stable across title changes so shared links keep working.
func UpdateProject(w http.ResponseWriter, r *http.Request) {
	project, ok := loadOwned(w, r)
	if !ok {
		return
	}

	var input projectInput
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := input.apply(project); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := db.DB.Save(project).Error; err != nil {
		http.Error(w, "Failed to update project", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, project)
}

func DeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := loadOwned(w, r)
	if !ok {
		return
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", project.ID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&Member{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		http.Error(w, "Failed to delete project", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func JoinProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	project, ok := loadProject(w, r)
	if !ok {
		return
	}

	var existing Member
	err := db.DB.First(&existing, "project_id = ? AND user_id = ?", project.ID, userID).Error
	if err == nil {
		http.Error(w, "Already a member of this project", http.StatusConflict)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	member := Member{ProjectID: project.ID, UserID: userID, Role: RoleMember}
	if err := db.DB.Create(&member).Error; err != nil {
		http.Error(w, "Failed to join project", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, member)
}

func LeaveProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	project, ok := loadProject(w, r)
	if !ok {
		return
	}
	if project.OwnerID == userID {
		http.Error(w, "The owner cannot leave the project", http.StatusBadRequest)
		return
	}

	res := db.DB.Where("project_id = ? AND user_id = ?", project.ID, userID).Delete(&Member{})
	if res.Error != nil {
		http.Error(w, "Failed to leave project", http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Not a member of this project", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ListMembers(w http.ResponseWriter, r *http.Request) {
	project, ok := loadProject(w, r)
	if !ok {
		return
	}

	var members []Member
	if err := db.DB.Where("project_id = ?", project.ID).Order("joined_at ASC").Find(&members).Error; err != nil {
		http.Error(w, "Failed to load members", http.StatusInternalServerError)
		return
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	names, err := auth.Names(ids)
	if err != nil {
		http.Error(w, "Failed to load members", http.StatusInternalServerError)
		return
	}
	for i := range members {
		members[i].FullName = names[members[i].UserID]
	}
	if members == nil {
		members = []Member{}
	}
	utils.WriteJSON(w, http.StatusOK, members)
}

func ListComments(w http.ResponseWriter, r *http.Request) {
	project, ok := loadProject(w, r)
	if !ok {
		return
	}

	var comments []Comment
	if err := db.DB.Where("project_id = ?", project.ID).Order("created_at ASC").Find(&comments).Error; err != nil {
		http.Error(w, "Failed to load comments", http.StatusInternalServerError)
		return
	}

	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	names, err := auth.Names(ids)
	if err != nil {
		http.Error(w, "Failed to load comments", http.StatusInternalServerError)
		return
	}
	for i := range comments {
		comments[i].AuthorName = names[comments[i].UserID]
	}
	if comments == nil {
		comments = []Comment{}
	}
	utils.WriteJSON(w, http.StatusOK, comments)
}

func CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	project, ok := loadProject(w, r)
	if !ok {
		return
	}

	var input struct {
		Body string `json:"body"`
	}
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	body := strings.TrimSpace(input.Body)
	if err := validateComment(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	comment := Comment{
		ID:        utils.GenerateUUID(),
		ProjectID: project.ID,
		UserID:    userID,
		Body:      body,
	}
	if err := db.DB.Create(&comment).Error; err != nil {
		http.Error(w, "Failed to create comment", http.StatusInternalServerError)
		return
	}
	if names, err := auth.Names([]string{userID}); err == nil {
		comment.AuthorName = names[userID]
	}
	utils.WriteJSON(w, http.StatusCreated, comment)
}

// DeleteComment removes a comment; only its author may do so.
func DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	project, ok := loadProject(w, r)
	if !ok {
		return
	}

	var comment Comment
	err := db.DB.First(&comment, "id = ? AND project_id = ?", chi.URLParam(r, "comment_id"), project.ID).Error
	if err != nil {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}
	if comment.UserID != userID {
		http.Error(w, "Only the author can delete this comment", http.StatusForbidden)
		return
	}

	if err := db.DB.Delete(&comment).Error; err != nil {
		http.Error(w, "Failed to delete comment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadProject resolves the {id} route param, which may be a project id or slug.
func loadProject(w http.ResponseWriter, r *http.Request) (*Project, bool) {
	key := chi.URLParam(r, "id")

	var project Project
	if err := db.DB.First(&project, "id = ? OR slug = ?", key, key).Error; err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return nil, false
	}
	return &project, true
}

func loadOwned(w http.ResponseWriter, r *http.Request) (*Project, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	project, ok := loadProject(w, r)
	if !ok {
		return nil, false
	}
	if project.OwnerID != userID {
		http.Error(w, "Only the owner can modify this project", http.StatusForbidden)
		return nil, false
	}
	return project, true
}

// apply validates the non-nil fields of in and copies them onto p.
func (in projectInput) apply(p *Project) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		p.Title = title
	}
	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return err
		}
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if err := validateCategory(category); err != nil {
			return err
		}
		p.Category = category
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return errBadStatus
		}
		p.Status = *in.Status
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return err
		}
		p.Location = *in.Location
	}
	if in.Area != nil {
		if len(*in.Area) == 0 {
			p.Area = nil
			p.AreaSqM = 0
		} else {
			aoi, err := areaselect.ParseCoordinates(*in.Area)
			if err != nil {
				return err
			}
			raw, err := aoi.MarshalGeoJSON()
			if err != nil {
				return err
			}
			p.Area = db.JSONB(raw)
			p.AreaSqM = aoi.AreaSqMeters()
		}
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return err
		}
		p.Tags = tags
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return nil
}

// uniqueSlug appends -2, -3, ... until the slug is free.
func uniqueSlug(tx *gorm.DB, base string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Model(&Project{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func attachMemberCounts(projects []Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}

	var rows []struct {
		ProjectID string
		Count     int64
	}
	err := db.DB.Model(&Member{}).
		Select("project_id, COUNT(*) AS count").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ProjectID] = row.Count
	}
	for i := range projects {
		projects[i].MemberCount = counts[projects[i].ID]
	}
	return nil
}

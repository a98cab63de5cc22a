package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/karanb04/18815-GoatTeam/internal/app"
	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type ProjectReader interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
}

type ProjectManager interface {
	ProjectReader
	CreateProject(ctx context.Context, in app.CreateProjectInput) (domain.Project, error)
	JoinProject(ctx context.Context, projectID, userID string) error
	ListUserProjects(ctx context.Context, userID string) ([]domain.Project, error)
}

type UserReader interface {
	GetUser(ctx context.Context, username string) (domain.User, error)
}

type createProjectRequest struct {
	ProjectName string `json:"projectName" validate:"required,max=128"`
	ProjectID   string `json:"projectId" validate:"required,max=128"`
	Description string `json:"description" validate:"max=2000"`
	Username    string `json:"username" validate:"required,max=64"`
}

// HandleCreateProject serves POST /create_project. The creator becomes the first member.
func HandleCreateProject(svc ProjectManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		_, err := svc.CreateProject(r.Context(), app.CreateProjectInput{
			ID:          req.ProjectID,
			Name:        req.ProjectName,
			Description: req.Description,
			CreatedBy:   req.Username,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeSuccess(w)
	}
}

type joinProjectRequest struct {
	Username  string `json:"username" validate:"required"`
	ProjectID string `json:"projectId" validate:"required"`
}

// HandleJoinProject serves POST /join_project.
func HandleJoinProject(svc ProjectManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.JoinProject(r.Context(), req.ProjectID, req.Username); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeSuccess(w)
	}
}

// HandleGetProjectInfo serves POST /get_project_info.
func HandleGetProjectInfo(svc ProjectReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req projectIDRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		p, err := svc.GetProject(r.Context(), req.ProjectID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newProjectRecord(p))
	}
}

type usernameRequest struct {
	Username string `json:"username" validate:"required"`
}

// HandleUserProjectsList serves POST /get_user_projects_list with full project records.
func HandleUserProjectsList(svc ProjectManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req usernameRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		projects, err := svc.ListUserProjects(r.Context(), req.Username)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]projectRecord, 0, len(projects))
		for _, p := range projects {
			out = append(out, newProjectRecord(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": out})
	}
}

// HandleMain serves GET /main?username=, listing the user's project ids.
func HandleMain(users UserReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.URL.Query().Get("username"))
		if username == "" {
			writeError(w, http.StatusBadRequest, codeInvalidArgument, "username is required")
			return
		}
		u, err := users.GetUser(r.Context(), username)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		projects := u.ProjectMemberships
		if projects == nil {
			projects = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
	}
}

package httpapi

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/server/models"
)

var courseLinks = map[string]string{
	"PHP Full Stack":       "https://www.php.net/docs.php",
	"Frontend Development": "https://developer.mozilla.org/en-US/docs/Learn/Front-end_web_developer",
	"Backend Development":  "https://roadmap.sh/backend",
	"Data Structures":      "https://www.geeksforgeeks.org/data-structures/",
	"UI/UX Basics":         "https://www.interaction-design.org/literature/topics/ui-design",
}

const defaultCourseLink = "https://developer.mozilla.org/"

type userView struct {
	ID              int64     `json:"id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Gender          string    `json:"gender"`
	Course          string    `json:"course"`
	CourseLink      string    `json:"course_link"`
	Address         string    `json:"address"`
	About           string    `json:"about"`
	ProfilePhoto    string    `json:"profile_photo"`
	ResumeFile      string    `json:"resume_file"`
	CoverLetterFile string    `json:"cover_letter_file"`
	CreatedAt       time.Time `json:"created_at"`
}

type fileView struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

type projectView struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Technologies string     `json:"technologies"`
	CreatedAt    time.Time  `json:"created_at"`
	ExportURL    string     `json:"export_url"`
	Files        []fileView `json:"files"`
}

// dashboardView is the whole dashboard page.
type dashboardView struct {
	Errors    []string      `json:"errors"`
	Success   string        `json:"success"`
	CSRFToken string        `json:"csrf_token"`
	User      userView      `json:"user"`
	Projects  []projectView `json:"projects"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newUserView(u *models.User) userView {
	link, ok := courseLinks[u.Course]
	if !ok {
		link = defaultCourseLink
	}
	return userView{
		ID:              u.ID,
		FullName:        u.FullName,
		Email:           u.Email,
		Phone:           u.Phone,
		Gender:          u.Gender,
		Course:          u.Course,
		CourseLink:      link,
		Address:         u.Address,
		About:           u.About,
		ProfilePhoto:    deref(u.ProfilePhoto),
		ResumeFile:      deref(u.ResumeFile),
		CoverLetterFile: deref(u.CoverLetterFile),
		CreatedAt:       u.CreatedAt,
	}
}

func newProjectViews(ps []*models.Project) []projectView {
	out := make([]projectView, 0, len(ps))
	for _, p := range ps {
		id := strconv.FormatInt(p.ID, 10)
		v := projectView{
			ID:           p.ID,
			Title:        p.Title,
			Description:  p.Description,
			Technologies: p.Technologies,
			CreatedAt:    p.CreatedAt,
			ExportURL:    "/dashboard/projects/" + id + "/export",
			Files:        make([]fileView, 0, len(p.Files)),
		}
		for _, f := range p.Files {
			v.Files = append(v.Files, fileView{
				ID:           f.ID,
				OriginalName: f.OriginalName,
				MimeType:     f.MimeType,
				FileSize:     f.FileSize,
				URL:          "/dashboard/files/" + strconv.FormatInt(f.ID, 10),
				CreatedAt:    f.CreatedAt,
			})
		}
		out = append(out, v)
	}
	return out
}

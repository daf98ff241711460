// Package flowcase fetches consultant CVs from the Flowcase HR API.
package flowcase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/domain"
)

// Config holds the Flowcase client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to the Flowcase REST API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewClient creates a Flowcase API client.
func NewClient(cfg *Config) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  cfg.Logger,
	}
}

// userDTO is the wire shape of a Flowcase user listing entry.
type userDTO struct {
	UserID      string `json:"user_id"`
	DefaultCVID string `json:"default_cv_id"`
	Deactivated bool   `json:"deactivated"`
}

// ListCVRefs returns identifier pairs for all active users' default CVs.
// limit caps the number of refs; 0 means no cap.
func (c *Client) ListCVRefs(ctx context.Context, limit int) ([]domain.CVRef, error) {
	url := fmt.Sprintf("%s/v1/users", c.baseURL)

	var users []userDTO
	if err := c.getJSON(ctx, url, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	refs := make([]domain.CVRef, 0, len(users))
	for _, u := range users {
		if u.Deactivated || u.UserID == "" || u.DefaultCVID == "" {
			continue
		}
		refs = append(refs, domain.CVRef{OwnerID: u.UserID, CVID: u.DefaultCVID})
		if limit > 0 && len(refs) >= limit {
			break
		}
	}
	return refs, nil
}

// cvDTO is the wire shape of a Flowcase CV. Only textual fields this
// service embeds are mapped.
type cvDTO struct {
	KeyQualifications  []sectionEntry `json:"key_qualifications"`
	ProjectExperiences []projectEntry `json:"project_experiences"`
	Positions          []sectionEntry `json:"positions"`
	Technologies       []skillGroup   `json:"technologies"`
	WorkExperiences    []sectionEntry `json:"work_experiences"`
	Educations         []sectionEntry `json:"educations"`
	Certifications     []sectionEntry `json:"certifications"`
	Courses            []sectionEntry `json:"courses"`
	Languages          []sectionEntry `json:"languages"`
}

type sectionEntry struct {
	Name            localized `json:"name"`
	LongDescription localized `json:"long_description"`
}

type projectEntry struct {
	Customer        localized `json:"customer"`
	Description     localized `json:"description"`
	LongDescription localized `json:"long_description"`
}

type skillGroup struct {
	Category localized `json:"category"`
	Skills   []struct {
		Tags localized `json:"tags"`
	} `json:"technology_skills"`
}

// localized is Flowcase's per-language text map; the international text
// wins, falling back to any non-blank value in stable key order.
type localized struct {
	Int string `json:"int"`
	No  string `json:"no"`
	Se  string `json:"se"`
	Dk  string `json:"dk"`
}

func (l localized) text() string {
	for _, v := range []string{l.Int, l.No, l.Se, l.Dk} {
		if v != "" {
			return v
		}
	}
	return ""
}

// FetchCV retrieves one CV and maps it to the domain model.
func (c *Client) FetchCV(ctx context.Context, ref domain.CVRef) (domain.CV, error) {
	url := fmt.Sprintf("%s/v3/cvs/%s/%s", c.baseURL, ref.OwnerID, ref.CVID)

	var dto cvDTO
	if err := c.getJSON(ctx, url, &dto); err != nil {
		return domain.CV{}, fmt.Errorf("fetch cv %s/%s: %w", ref.OwnerID, ref.CVID, err)
	}

	return domain.CV{
		OwnerID:  ref.OwnerID,
		CVID:     ref.CVID,
		Sections: dto.toSections(),
	}, nil
}

func (d cvDTO) toSections() domain.Sections {
	var s domain.Sections
	s.Qualifications = entryTexts(d.KeyQualifications)
	for _, p := range d.ProjectExperiences {
		s.ProjectExperience = appendNonBlank(s.ProjectExperience,
			p.Customer.text(), p.Description.text(), p.LongDescription.text())
	}
	s.Roles = entryTexts(d.Positions)
	for _, g := range d.Technologies {
		s.Skills = appendNonBlank(s.Skills, g.Category.text())
		for _, sk := range g.Skills {
			s.Skills = appendNonBlank(s.Skills, sk.Tags.text())
		}
	}
	s.WorkHistory = entryTexts(d.WorkExperiences)
	s.Education = entryTexts(d.Educations)
	s.Certifications = entryTexts(d.Certifications)
	s.Courses = entryTexts(d.Courses)
	s.Languages = entryTexts(d.Languages)
	return s
}

func entryTexts(entries []sectionEntry) []string {
	var out []string
	for _, e := range entries {
		out = appendNonBlank(out, e.Name.text(), e.LongDescription.text())
	}
	return out
}

func appendNonBlank(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

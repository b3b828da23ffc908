package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/exteriorai/exteriorai-backend/internal/inflight"
	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/metrics"
	"github.com/exteriorai/exteriorai-backend/internal/objectstore"
	"github.com/exteriorai/exteriorai-backend/internal/pipeline"
	"github.com/exteriorai/exteriorai-backend/internal/projects/domain"
	"github.com/exteriorai/exteriorai-backend/internal/projects/repository"
)

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 100

	UploadWarning = "Project created, but the image could not be uploaded."
)

// Runner produces a hosted image from a prompt and optional reference.
type Runner interface {
	Run(ctx context.Context, prompt, originalImageURL string) (*pipeline.Outcome, error)
}

// ProjectService sequences store, upload and generation calls for one user
// action. Every step waits for the previous one.
type ProjectService struct {
	repo          *repository.ProjectRepository
	uploader      objectstore.Uploader
	runner        Runner
	guard         inflight.Guard
	publicBaseURL string
}

func NewProjectService(repo *repository.ProjectRepository, uploader objectstore.Uploader, runner Runner, guard inflight.Guard, publicBaseURL string) *ProjectService {
	return &ProjectService{
		repo:          repo,
		uploader:      uploader,
		runner:        runner,
		guard:         guard,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

type CreateInput struct {
	Name            string
	Type            string
	StylePreference *int
	ImageData       string
}

type UpdateInput struct {
	Name            *string
	Type            *string
	StylePreference *int
	ImageData       *string
}

// Saved is a written project plus a warning for a step that failed after the
// write.
type Saved struct {
	Project *domain.Project `json:"project"`
	Warning string          `json:"warning,omitempty"`
}

type Attached struct {
	Project *domain.Project              `json:"project"`
	Record  *domain.TransformationRecord `json:"transformation"`
}

// Generated holds Attached when the image was hosted. A degraded outcome is
// returned without anything being persisted.
type Generated struct {
	Outcome  *pipeline.Outcome
	Attached *Attached
}

// Create requires an image. Every input is validated before the first write.
func (s *ProjectService) Create(ctx context.Context, ownerID string, in CreateInput) (*Saved, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	name, err := domain.ValidateName(in.Name)
	if err != nil {
		return nil, err
	}
	typ, err := domain.ParseProjectType(in.Type)
	if err != nil {
		return nil, err
	}
	style := domain.DefaultStylePreference
	if in.StylePreference != nil {
		style = *in.StylePreference
	}
	if err := domain.ValidateStylePreference(style); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ImageData) == "" {
		return nil, domain.ErrImageRequired
	}
	if _, err := objectstore.ValidateImage(in.ImageData); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)

	id, err := s.repo.CreateProject(ctx, domain.NewProject{
		OwnerID:         ownerID,
		Name:            name,
		Type:            typ,
		Status:          domain.StatusDraft,
		StylePreference: style,
	})
	if err != nil {
		return nil, err
	}

	saved := &Saved{}
	if thumb, err := s.uploadImage(ctx, ownerID, id, in.ImageData); err != nil {
		log.LogWarnf("create_project", "project %s created without image: %v", id, err)
		saved.Warning = UploadWarning
	} else if err := s.repo.UpdateProject(ctx, id, domain.ProjectUpdate{Thumbnail: &thumb}); err != nil {
		log.LogWarnf("create_project", "project %s thumbnail not saved: %v", id, err)
		saved.Warning = UploadWarning
	}

	s.repo.CreateActivityLog(ctx, ownerID, "Created project: "+name, id, name)

	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	saved.Project = p
	log.LogInfof("create_project", "project %s created", id)
	return saved, nil
}

func (s *ProjectService) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return s.repo.GetUserProjects(ctx, ownerID)
}

// Get hides projects of other owners behind ErrNotFound.
func (s *ProjectService) Get(ctx context.Context, ownerID, id string) (*domain.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Update applies the given fields. A new image is uploaded before anything
// is written, so an upload failure leaves the project untouched.
func (s *ProjectService) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*domain.Project, error) {
	current, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	var u domain.ProjectUpdate
	if in.Name != nil {
		name, err := domain.ValidateName(*in.Name)
		if err != nil {
			return nil, err
		}
		u.Name = &name
	}
	if in.Type != nil {
		typ, err := domain.ParseProjectType(*in.Type)
		if err != nil {
			return nil, err
		}
		u.Type = &typ
	}
	if in.StylePreference != nil {
		if err := domain.ValidateStylePreference(*in.StylePreference); err != nil {
			return nil, err
		}
		u.StylePreference = in.StylePreference
	}
	if in.ImageData != nil {
		if _, err := objectstore.ValidateImage(*in.ImageData); err != nil {
			return nil, err
		}
		thumb, err := s.uploadImage(ctx, ownerID, id, *in.ImageData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrImageUpload, err)
		}
		u.Thumbnail = &thumb
	}

	if err := s.repo.UpdateProject(ctx, id, u); err != nil {
		return nil, err
	}

	name := current.Name
	if u.Name != nil {
		name = *u.Name
	}
	s.repo.CreateActivityLog(ctx, ownerID, "Updated project: "+name, id, name)

	return s.repo.GetProject(ctx, id)
}

func (s *ProjectService) Delete(ctx context.Context, ownerID, id string) error {
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.repo.CreateActivityLog(ctx, ownerID, "Deleted project: "+p.Name, id, p.Name)
	logging.FromContext(ctx).LogInfof("delete_project", "project %s deleted", id)
	return nil
}

// ProcessCommand records that a voice or text command was handled, which
// moves the project to in-progress.
func (s *ProjectService) ProcessCommand(ctx context.Context, ownerID, id, text string) (*domain.Project, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyCommand
	}
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	next := domain.NextStatus(p.Status, domain.EventCommandProcessed)
	if err := s.repo.UpdateProject(ctx, id, domain.ProjectUpdate{Status: &next}); err != nil {
		return nil, err
	}
	return s.repo.GetProject(ctx, id)
}

// Generate runs generate then host then attach for one project. The
// reference image defaults to the current thumbnail. Only one generation per
// project runs at a time.
func (s *ProjectService) Generate(ctx context.Context, ownerID, id, prompt, referenceImageURL string) (*Generated, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, "project:"+id+":generate")
	if err != nil {
		return nil, err
	}
	defer release()

	// re-read under the lease so the previous image is the latest thumbnail
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	ref := referenceImageURL
	if ref == "" {
		ref = p.Thumbnail
	}

	out, err := s.runner.Run(ctx, prompt, ref)
	if err != nil {
		return nil, err
	}
	if out.Degraded {
		logging.FromContext(ctx).LogWarnf("generate_transformation", "project %s: image not hosted, nothing persisted", id)
		return &Generated{Outcome: out}, nil
	}

	attached, err := s.attach(ctx, p, out.ImageURL, prompt)
	if err != nil {
		return nil, err
	}
	return &Generated{Outcome: out, Attached: attached}, nil
}

// AttachTransformation records an image generated elsewhere.
func (s *ProjectService) AttachTransformation(ctx context.Context, ownerID, id, imageURL, prompt string) (*Attached, error) {
	imageURL = strings.TrimSpace(imageURL)
	if !isAbsoluteHTTPURL(imageURL) {
		return nil, domain.ErrInvalidImageURL
	}
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.attach(ctx, p, imageURL, strings.TrimSpace(prompt))
}

// attach inserts the record, then updates the project. The two writes are
// not transactional; a failed update returns a PartialWriteError and the
// record stays.
func (s *ProjectService) attach(ctx context.Context, p *domain.Project, imageURL, prompt string) (*Attached, error) {
	log := logging.FromContext(ctx)

	recordID, err := s.repo.AddTransformationRecord(ctx, p.ID, domain.NewTransformation{
		ImageURL:         imageURL,
		PreviousImageURL: p.Thumbnail,
		Prompt:           prompt,
	})
	if err != nil {
		return nil, err
	}

	count := p.Transformations + 1
	status := domain.NextStatus(p.Status, domain.EventTransformationAttached)
	err = s.repo.UpdateProject(ctx, p.ID, domain.ProjectUpdate{
		Thumbnail:       &imageURL,
		Transformations: &count,
		Status:          &status,
	})
	if err != nil {
		log.LogErrorf("attach_transformation", "project %s: record %s written but project update failed: %v", p.ID, recordID, err)
		metrics.RecordDegraded(metrics.DegradedPartialWrite)
		return nil, &domain.PartialWriteError{ProjectID: p.ID, RecordID: recordID, Err: err}
	}

	updated, err := s.repo.GetProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.GetTransformationRecord(ctx, p.ID, recordID)
	if err != nil {
		return nil, err
	}
	log.LogInfof("attach_transformation", "project %s: transformation %s attached", p.ID, recordID)
	return &Attached{Project: updated, Record: record}, nil
}

func (s *ProjectService) Transformations(ctx context.Context, ownerID, id string) ([]domain.TransformationRecord, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.repo.GetProjectTransformations(ctx, id)
}

// Activity clamps limit to [1, MaxActivityLimit]; zero or less means the
// default.
func (s *ProjectService) Activity(ctx context.Context, ownerID string, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}
	return s.repo.GetUserActivity(ctx, ownerID, limit)
}

// ShareURL is a link stub; no sharing permissions exist.
func (s *ProjectService) ShareURL(ctx context.Context, ownerID, id string) (string, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return "", err
	}
	return s.publicBaseURL + "/shared-projects/" + url.PathEscape(id), nil
}

func (s *ProjectService) uploadImage(ctx context.Context, ownerID, projectID, dataURI string) (string, error) {
	res, err := s.uploader.Upload(ctx, dataURI, "users/"+ownerID+"/projects/"+projectID)
	if err != nil {
		return "", err
	}
	if res == nil || res.URL == "" {
		return "", errors.New("upload returned no url")
	}
	return res.URL, nil
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

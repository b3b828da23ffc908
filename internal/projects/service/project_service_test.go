package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exteriorai/exteriorai-backend/internal/generation"
	"github.com/exteriorai/exteriorai-backend/internal/inflight"
	"github.com/exteriorai/exteriorai-backend/internal/objectstore"
	"github.com/exteriorai/exteriorai-backend/internal/pipeline"
	"github.com/exteriorai/exteriorai-backend/internal/projects/domain"
	"github.com/exteriorai/exteriorai-backend/internal/projects/repository"
	"github.com/exteriorai/exteriorai-backend/internal/store"
)

const testImage = "data:image/png;base64,iVBORw0KGgo="

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	folders []string
}

func (f *fakeUploader) Upload(ctx context.Context, dataURI, folder string) (*objectstore.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders = append(f.folders, folder)
	if f.err != nil {
		return nil, f.err
	}
	return &objectstore.Result{URL: "https://res.cloudinary.com/demo/" + folder + "/img.png", PublicID: folder + "/img"}, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	outcome *pipeline.Outcome
	err     error
	refs    []string
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, prompt, ref string) (*pipeline.Outcome, error) {
	f.mu.Lock()
	f.refs = append(f.refs, ref)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.outcome, f.err
}

type fixture struct {
	svc      *ProjectService
	mem      *store.Memory
	repo     *repository.ProjectRepository
	uploader *fakeUploader
	runner   *fakeRunner
	guard    *inflight.Local
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	mem.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	})
	repo := repository.NewProjectRepository(mem)
	up := &fakeUploader{}
	run := &fakeRunner{outcome: &pipeline.Outcome{ImageURL: "https://i.ibb.co/gen/1.png", Caption: "Here's your fire pit"}}
	guard := inflight.NewLocal()
	return &fixture{
		svc:      NewProjectService(repo, up, run, guard, "https://app.exteriorai.test/"),
		guard:    guard,
		mem:      mem,
		repo:     repo,
		uploader: up,
		runner:   run,
	}
}

func (f *fixture) create(t *testing.T, owner, name string) *domain.Project {
	t.Helper()
	saved, err := f.svc.Create(context.Background(), owner, CreateInput{Name: name, Type: "backyard", ImageData: testImage})
	require.NoError(t, err)
	require.Empty(t, saved.Warning)
	return saved.Project
}

func TestCreate_RequiresImageBeforeAnyWrite(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "u1", CreateInput{Name: "Yard"})
	assert.ErrorIs(t, err, domain.ErrImageRequired)

	_, err = f.svc.Create(ctx, "u1", CreateInput{Name: "Yard", ImageData: "data:text/plain;base64,QUJD"})
	assert.ErrorIs(t, err, objectstore.ErrNotAnImage)

	_, err = f.svc.Create(ctx, "u1", CreateInput{Name: "  ", ImageData: testImage})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.Create(ctx, "u1", CreateInput{Name: "Yard", Type: "castle", ImageData: testImage})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	style := 101
	_, err = f.svc.Create(ctx, "u1", CreateInput{Name: "Yard", StylePreference: &style, ImageData: testImage})
	assert.ErrorIs(t, err, domain.ErrInvalidStyle)

	assert.Equal(t, 0, f.mem.Writes())
	assert.Empty(t, f.uploader.folders)
}

func TestCreate_Defaults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	saved, err := f.svc.Create(ctx, "u1", CreateInput{Name: " Front lawn ", ImageData: testImage})
	require.NoError(t, err)

	p := saved.Project
	assert.Equal(t, "Front lawn", p.Name)
	assert.Equal(t, domain.TypeOther, p.Type)
	assert.Equal(t, domain.StatusDraft, p.Status)
	assert.Equal(t, domain.DefaultStylePreference, p.StylePreference)
	assert.Equal(t, 0, p.Transformations)
	assert.Equal(t, []string{"users/u1/projects/" + p.ID}, f.uploader.folders)
	assert.Contains(t, p.Thumbnail, "users/u1/projects/"+p.ID)

	activity, err := f.svc.Activity(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "Created project: Front lawn", activity[0].Action)
	assert.Equal(t, p.ID, activity[0].ProjectID)
}

func TestCreate_UploadFailureWarnsButKeepsProject(t *testing.T) {
	f := setup(t)
	f.uploader.err = errors.New("cloudinary down")

	saved, err := f.svc.Create(context.Background(), "u1", CreateInput{Name: "Patio", ImageData: testImage})
	require.NoError(t, err)
	assert.Equal(t, UploadWarning, saved.Warning)
	assert.Empty(t, saved.Project.Thumbnail)

	list, err := f.svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_ActivityFailureDoesNotFail(t *testing.T) {
	f := setup(t)
	f.mem.FailOn("add", "activity", errors.New("quota exceeded"))

	saved, err := f.svc.Create(context.Background(), "u1", CreateInput{Name: "Patio", ImageData: testImage})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Project.ID)
}

func TestGet_OtherOwnerIsNotFound(t *testing.T) {
	f := setup(t)
	p := f.create(t, "u1", "Garden")

	_, err := f.svc.Get(context.Background(), "u2", p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Delete(context.Background(), "u2", p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	name := "Rose garden"
	style := 80
	updated, err := f.svc.Update(ctx, "u1", p.ID, UpdateInput{Name: &name, StylePreference: &style})
	require.NoError(t, err)
	assert.Equal(t, "Rose garden", updated.Name)
	assert.Equal(t, 80, updated.StylePreference)
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	f.uploader.err = errors.New("boom")
	img := testImage
	_, err = f.svc.Update(ctx, "u1", p.ID, UpdateInput{ImageData: &img})
	assert.ErrorIs(t, err, domain.ErrImageUpload)

	activity, err := f.svc.Activity(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "Updated project: Rose garden", activity[0].Action)
}

func TestDelete_LeavesHistoryAndLogsActivity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	_, err := f.svc.AttachTransformation(ctx, "u1", p.ID, "https://i.ibb.co/a.png", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "u1", p.ID))

	_, err = f.svc.Get(ctx, "u1", p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	records, err := f.repo.GetProjectTransformations(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	activity, err := f.svc.Activity(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Deleted project: Garden", activity[0].Action)
}

func TestProcessCommand(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	_, err := f.svc.ProcessCommand(ctx, "u1", p.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyCommand)

	updated, err := f.svc.ProcessCommand(ctx, "u1", p.ID, "add a fire pit")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
}

func TestAttachTransformation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")
	original := p.Thumbnail

	_, err := f.svc.AttachTransformation(ctx, "u1", p.ID, "data:image/png;base64,QUJD", "")
	assert.ErrorIs(t, err, domain.ErrInvalidImageURL)
	_, err = f.svc.AttachTransformation(ctx, "u1", p.ID, "/relative.png", "")
	assert.ErrorIs(t, err, domain.ErrInvalidImageURL)

	first, err := f.svc.AttachTransformation(ctx, "u1", p.ID, "https://i.ibb.co/1.png", "add a fire pit")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Project.Transformations)
	assert.Equal(t, domain.StatusCompleted, first.Project.Status)
	assert.Equal(t, "https://i.ibb.co/1.png", first.Project.Thumbnail)
	assert.Equal(t, original, first.Record.PreviousImageURL)
	assert.Equal(t, "add a fire pit", first.Record.Prompt)
	assert.False(t, first.Record.Timestamp.IsZero())

	second, err := f.svc.AttachTransformation(ctx, "u1", p.ID, "https://i.ibb.co/2.png", "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Project.Transformations)
	assert.Equal(t, "https://i.ibb.co/1.png", second.Record.PreviousImageURL)

	records, err := f.svc.Transformations(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.Record.ID, records[0].ID)
	assert.Equal(t, first.Record.ID, records[1].ID)
}

func TestAttachTransformation_PartialWrite(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	f.mem.FailOn("update", "projects", errors.New("unavailable"))
	_, err := f.svc.AttachTransformation(ctx, "u1", p.ID, "https://i.ibb.co/1.png", "")

	assert.ErrorIs(t, err, domain.ErrPartialWrite)
	var pw *domain.PartialWriteError
	require.ErrorAs(t, err, &pw)
	assert.Equal(t, p.ID, pw.ProjectID)
	assert.NotEmpty(t, pw.RecordID)

	f.mem.FailOn("update", "projects", nil)
	records, err := f.svc.Transformations(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, pw.RecordID, records[0].ID)

	unchanged, err := f.svc.Get(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unchanged.Transformations)
}

func TestGenerate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	_, err := f.svc.Generate(ctx, "u1", p.ID, " ", "")
	assert.ErrorIs(t, err, domain.ErrEmptyPrompt)

	res, err := f.svc.Generate(ctx, "u1", p.ID, "add a fire pit", "")
	require.NoError(t, err)
	require.NotNil(t, res.Attached)
	assert.Equal(t, []string{p.Thumbnail}, f.runner.refs)
	assert.Equal(t, "https://i.ibb.co/gen/1.png", res.Attached.Project.Thumbnail)
	assert.Equal(t, domain.StatusCompleted, res.Attached.Project.Status)
	assert.Equal(t, "Here's your fire pit", res.Outcome.Caption)

	_, err = f.svc.Generate(ctx, "u1", p.ID, "add lights", "https://example.com/other.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/other.jpg", f.runner.refs[1])
}

func TestGenerate_DegradedPersistsNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")
	f.runner.outcome = &pipeline.Outcome{ImageURL: "data:image/png;base64,AAAA...", Degraded: true, FullImageTooLarge: true, Warning: "truncated"}

	res, err := f.svc.Generate(ctx, "u1", p.ID, "add a fire pit", "")
	require.NoError(t, err)
	assert.Nil(t, res.Attached)
	assert.True(t, res.Outcome.Degraded)

	records, err := f.svc.Transformations(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	unchanged, err := f.svc.Get(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Thumbnail, unchanged.Thumbnail)
}

func TestGenerate_UpstreamErrorPassesThrough(t *testing.T) {
	f := setup(t)
	p := f.create(t, "u1", "Garden")
	f.runner.err = generation.ErrNoImageGenerated

	_, err := f.svc.Generate(context.Background(), "u1", p.ID, "add a fire pit", "")
	assert.ErrorIs(t, err, generation.ErrNoImageGenerated)
}

func TestGenerate_RejectsConcurrentRunForSameProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	f.runner.block = make(chan struct{})
	f.runner.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Generate(ctx, "u1", p.ID, "add a fire pit", "")
		done <- err
	}()
	<-f.runner.entered

	_, err := f.svc.Generate(ctx, "u1", p.ID, "add a pond", "")
	assert.ErrorIs(t, err, inflight.ErrInFlight)

	close(f.runner.block)
	require.NoError(t, <-done)

	f.runner.block = nil
	f.runner.entered = nil
	_, err = f.svc.Generate(ctx, "u1", p.ID, "add a pond", "")
	assert.NoError(t, err)
}

func TestGenerate_OtherOwnerIsNotFoundWhileRunning(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	f.runner.block = make(chan struct{})
	f.runner.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Generate(ctx, "u1", p.ID, "add a fire pit", "")
		done <- err
	}()
	<-f.runner.entered

	_, err := f.svc.Generate(ctx, "u2", p.ID, "add a pond", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, inflight.ErrInFlight)

	close(f.runner.block)
	require.NoError(t, <-done)
}

func TestGenerate_OtherOwnerDoesNotTakeLease(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.create(t, "u1", "Garden")

	_, err := f.svc.Generate(ctx, "u2", p.ID, "add a pond", "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	release, err := f.guard.Acquire(ctx, "project:"+p.ID+":generate")
	require.NoError(t, err)
	release()
}

func TestActivity_Limits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.repo.CreateActivityLog(ctx, "u1", "Updated project: x", "", "")
	}

	got, err := f.svc.Activity(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultActivityLimit)

	got, err = f.svc.Activity(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.Len(t, got, 12)
}

func TestShareURL(t *testing.T) {
	f := setup(t)
	p := f.create(t, "u1", "Garden")

	link, err := f.svc.ShareURL(context.Background(), "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://app.exteriorai.test/shared-projects/"+p.ID, link)
}

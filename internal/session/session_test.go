package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"asseto/internal/batch"
	"asseto/internal/domain"
	"asseto/internal/providers/image"
	"asseto/internal/providers/prompt"
)

type memRepo struct {
	mu       sync.Mutex
	projects map[string]domain.ProjectConfig
	status   map[string]domain.BatchStatus
	images   map[string][]domain.GeneratedImage
	styles   []domain.StyleReference
}

func newMemRepo() *memRepo {
	return &memRepo{
		projects: map[string]domain.ProjectConfig{},
		status:   map[string]domain.BatchStatus{},
		images:   map[string][]domain.GeneratedImage{},
	}
}

func (m *memRepo) SaveProject(ctx context.Context, id string, cfg domain.ProjectConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[id] = cfg.Clone()
	if _, ok := m.status[id]; !ok {
		m.status[id] = domain.BatchStatusIdle
	}
	return nil
}

func (m *memRepo) ReplaceImages(ctx context.Context, id string, images []domain.GeneratedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[id] = append([]domain.GeneratedImage(nil), images...)
	return nil
}

func (m *memRepo) UpdateImage(ctx context.Context, id string, img domain.GeneratedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.images[id] {
		if existing.ID == img.ID {
			m.images[id][i] = img
		}
	}
	return nil
}

func (m *memRepo) SaveBatchStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = status
	return nil
}

func (m *memRepo) LoadProject(ctx context.Context, id string) (*domain.ProjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.ProjectRecord{
		ID:          id,
		Config:      cfg.Clone(),
		BatchStatus: m.status[id],
		Images:      append([]domain.GeneratedImage(nil), m.images[id]...),
	}, nil
}

func (m *memRepo) SaveStyleReference(ctx context.Context, ref domain.StyleReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.styles = append(m.styles, ref)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngGenerator(t *testing.T) image.Generator {
	data := pngBytes(t)
	return image.GeneratorFunc(func(ctx context.Context, req image.GenerateRequest) (image.Asset, error) {
		return image.Asset{Data: data, MIMEType: "image/png"}, nil
	})
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func smallProject() domain.ProjectConfig {
	return domain.ProjectConfig{
		Name:        "Acme Cafe",
		Category:    "Food & Restaurant",
		Description: "cozy cafe",
		Style:       "Realistic Photography",
		AspectRatio: "1:1",
		Sections: []domain.SectionConfig{
			{ID: "hero", Name: "Hero", ImageCount: 2},
			{ID: "menu", Name: "Menu Items", ImageCount: 1},
		},
	}
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Generator == nil {
		opts.Generator = pngGenerator(t)
	}
	if opts.NewID == nil {
		opts.NewID = sequentialIDs()
	}
	s, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func runBatch(t *testing.T, s *Session) domain.BatchStatus {
	t.Helper()
	if _, err := s.StartBatch(context.Background()); err != nil {
		t.Fatalf("StartBatch returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	return status
}

func TestSessionStartsWithDefaultProject(t *testing.T) {
	s := newTestSession(t, Options{})
	project := s.Project()
	if project.Name != "New Project" || len(project.Sections) != 4 {
		t.Fatalf("unexpected default project: %+v", project)
	}
	st := s.Status()
	if st.Status != domain.BatchStatusIdle || st.Progress.Total != 0 || st.BatchID != "" {
		t.Fatalf("unexpected initial status: %+v", st)
	}
}

func TestSessionBatchExportAndDownload(t *testing.T) {
	s := newTestSession(t, Options{})
	if _, err := s.UpdateProject(context.Background(), smallProject()); err != nil {
		t.Fatalf("UpdateProject returned error: %v", err)
	}

	if status := runBatch(t, s); status != domain.BatchStatusCompleted {
		t.Fatalf("batch status = %s", status)
	}
	st := s.Status()
	if st.Progress.Completed != 3 || st.Progress.Pending != 0 || st.BatchID == "" {
		t.Fatalf("unexpected status: %+v", st)
	}

	res, err := s.ExportAll(context.Background(), domain.FormatPNG)
	if err != nil {
		t.Fatalf("ExportAll returned error: %v", err)
	}
	if res.Name != "Acme_Cafe_assets.zip" || len(res.Files) != 3 {
		t.Fatalf("unexpected export: name=%s files=%v", res.Name, res.Files)
	}

	sec, err := s.ExportSection(context.Background(), "menu", domain.FormatJPEG)
	if err != nil {
		t.Fatalf("ExportSection returned error: %v", err)
	}
	if sec.Name != "Menu_Items_jpeg.zip" || len(sec.Files) != 1 {
		t.Fatalf("unexpected section export: %s %v", sec.Name, sec.Files)
	}

	first := s.Images()[0]
	name, data, err := s.Download(first.ID, domain.FormatWEBP)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if name != "asset_"+first.ID+".webp" || len(data) == 0 {
		t.Fatalf("unexpected download %s (%d bytes)", name, len(data))
	}
	if _, _, err := s.Download("missing", domain.FormatPNG); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRegenerate(t *testing.T) {
	s := newTestSession(t, Options{})
	if _, err := s.UpdateProject(context.Background(), smallProject()); err != nil {
		t.Fatalf("UpdateProject returned error: %v", err)
	}
	runBatch(t, s)

	target := s.Images()[1]
	out, err := s.Regenerate(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("Regenerate returned error: %v", err)
	}
	if !out.Replaced || out.Image.ID != target.ID {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if _, err := s.Regenerate(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionUpdateProjectRejectsInvalid(t *testing.T) {
	s := newTestSession(t, Options{})
	bad := smallProject()
	bad.Sections[1].ID = "hero"
	if _, err := s.UpdateProject(context.Background(), bad); !errors.Is(err, domain.ErrInvalidProject) {
		t.Fatalf("expected ErrInvalidProject, got %v", err)
	}
	if s.Project().Name != "New Project" {
		t.Fatal("invalid project was installed")
	}
}

func TestSessionPersistsBatch(t *testing.T) {
	repo := newMemRepo()
	s, err := New(context.Background(), Options{Generator: pngGenerator(t), Repository: repo, NewID: sequentialIDs()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := s.UpdateProject(context.Background(), smallProject()); err != nil {
		t.Fatalf("UpdateProject returned error: %v", err)
	}
	runBatch(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	rec, err := repo.LoadProject(context.Background(), DefaultProjectID)
	if err != nil {
		t.Fatalf("LoadProject returned error: %v", err)
	}
	if rec.Config.Name != "Acme Cafe" || rec.BatchStatus != domain.BatchStatusCompleted {
		t.Fatalf("unexpected record: name=%s status=%s", rec.Config.Name, rec.BatchStatus)
	}
	if len(rec.Images) != 3 {
		t.Fatalf("expected 3 stored images, got %d", len(rec.Images))
	}
	for _, img := range rec.Images {
		if img.Status != domain.ImageStatusCompleted || img.Artifact.Empty() {
			t.Fatalf("image %s not persisted as completed: %+v", img.ID, img)
		}
	}
}

func TestSessionSavesDefaultProjectWhenNoneStored(t *testing.T) {
	repo := newMemRepo()
	s, err := New(context.Background(), Options{Generator: pngGenerator(t), Repository: repo})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if repo.projects[DefaultProjectID].Name != "New Project" {
		t.Fatalf("default project not saved: %+v", repo.projects)
	}
}

func TestSessionRestoresInterruptedBatch(t *testing.T) {
	repo := newMemRepo()
	project := smallProject()
	repo.projects["p1"] = project
	repo.status["p1"] = domain.BatchStatusGenerating
	repo.images["p1"] = []domain.GeneratedImage{
		{ID: "a", SectionID: "hero", Prompt: "p", Status: domain.ImageStatusCompleted, Artifact: &domain.Artifact{Data: pngBytes(t), MIMEType: "image/png"}},
		{ID: "b", SectionID: "hero", Prompt: "p", Status: domain.ImageStatusPending},
	}

	s, err := New(context.Background(), Options{Generator: pngGenerator(t), Repository: repo, ProjectID: "p1"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	images := s.Images()
	if len(images) != 2 || images[0].Status != domain.ImageStatusCompleted {
		t.Fatalf("unexpected restored images: %+v", images)
	}
	if images[1].Status != domain.ImageStatusFailed || images[1].Error != interruptedReason {
		t.Fatalf("pending image not failed: %+v", images[1])
	}
	if st := s.Status(); st.Status != domain.BatchStatusFailed {
		t.Fatalf("status = %s", st.Status)
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if repo.status["p1"] != domain.BatchStatusFailed || repo.images["p1"][1].Status != domain.ImageStatusFailed {
		t.Fatalf("recovery not persisted: status=%s images=%+v", repo.status["p1"], repo.images["p1"])
	}
}

func TestRecoverInterrupted(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	settled := []domain.GeneratedImage{{ID: "a", Status: domain.ImageStatusCompleted}}
	items, status, interrupted := recoverInterrupted(settled, domain.BatchStatusCompleted, now)
	if interrupted || status != domain.BatchStatusCompleted || items[0].Status != domain.ImageStatusCompleted {
		t.Fatalf("settled batch changed: %v %s", interrupted, status)
	}
	_, status, _ = recoverInterrupted(nil, "", now)
	if status != domain.BatchStatusIdle {
		t.Fatalf("empty status = %s", status)
	}
}

type fakeRefiner struct {
	refined string
	details string
	gotReq  prompt.SectionRequest
}

func (f *fakeRefiner) Refine(ctx context.Context, req prompt.RefineRequest) string {
	return f.refined
}

func (f *fakeRefiner) SuggestSectionDetails(ctx context.Context, req prompt.SectionRequest) string {
	f.gotReq = req
	return f.details
}

func (f *fakeRefiner) Provider() string { return "fake" }

func TestSessionTextCollaborators(t *testing.T) {
	refiner := &fakeRefiner{refined: "A warm, inviting cafe.", details: "Steaming cups on a wooden counter."}
	s := newTestSession(t, Options{Refiner: refiner})
	if _, err := s.UpdateProject(context.Background(), smallProject()); err != nil {
		t.Fatalf("UpdateProject returned error: %v", err)
	}

	project, err := s.RefineDescription(context.Background(), "id")
	if err != nil {
		t.Fatalf("RefineDescription returned error: %v", err)
	}
	if project.Description != "A warm, inviting cafe." || s.Project().Description != project.Description {
		t.Fatalf("description not refined: %q", project.Description)
	}

	project, err = s.SuggestSection(context.Background(), "menu", "id")
	if err != nil {
		t.Fatalf("SuggestSection returned error: %v", err)
	}
	if sec, _ := project.Section("menu"); sec.Description != "Steaming cups on a wooden counter." {
		t.Fatalf("section not updated: %+v", sec)
	}
	if refiner.gotReq.SectionName != "Menu Items" || refiner.gotReq.ProjectContext != "Food & Restaurant" || refiner.gotReq.Locale != "id" {
		t.Fatalf("unexpected suggestion request: %+v", refiner.gotReq)
	}

	if _, err := s.SuggestSection(context.Background(), "nope", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	refiner.refined = ""
	project, err = s.RefineDescription(context.Background(), "")
	if err != nil || project.Description != "A warm, inviting cafe." {
		t.Fatalf("blank refinement overwrote description: %q %v", project.Description, err)
	}
}

type fakeExtractor struct {
	style string
	err   error
}

func (f fakeExtractor) Analyze(ctx context.Context, images []prompt.ReferenceImage, instruction string) (string, error) {
	return f.style, f.err
}

func TestSessionAnalyzeStyle(t *testing.T) {
	plain := newTestSession(t, Options{})
	if _, err := plain.AnalyzeStyle(context.Background(), []prompt.ReferenceImage{{Data: []byte{1}}}); !errors.Is(err, ErrStyleUnavailable) {
		t.Fatalf("expected ErrStyleUnavailable, got %v", err)
	}

	repo := newMemRepo()
	s, err := New(context.Background(), Options{
		Generator:      pngGenerator(t),
		Repository:     repo,
		StyleExtractor: fakeExtractor{style: "Soft pastel light."},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := s.AnalyzeStyle(context.Background(), []prompt.ReferenceImage{{}}); !errors.Is(err, ErrNoReferenceImages) {
		t.Fatalf("expected ErrNoReferenceImages, got %v", err)
	}

	refs := []prompt.ReferenceImage{{Data: []byte{1}}, {Data: []byte{2}}, {Data: []byte{3}}, {Data: []byte{4}}}
	project, err := s.AnalyzeStyle(context.Background(), refs)
	if err != nil {
		t.Fatalf("AnalyzeStyle returned error: %v", err)
	}
	if project.Style != domain.StyleImageReference || project.StylePrompt != "Soft pastel light." {
		t.Fatalf("style not applied: %+v", project)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if len(repo.styles) != 1 || repo.styles[0].ImageCount != prompt.MaxStyleImages || repo.styles[0].ProjectID != DefaultProjectID {
		t.Fatalf("style reference not recorded: %+v", repo.styles)
	}
}

func TestSessionAnalyzeStyleProviderFailure(t *testing.T) {
	s := newTestSession(t, Options{StyleExtractor: fakeExtractor{err: errors.New("quota")}})
	_, err := s.AnalyzeStyle(context.Background(), []prompt.ReferenceImage{{Data: []byte{1}}})
	if !errors.Is(err, domain.ErrProviderFailure) || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("expected provider failure, got %v", err)
	}
}

type recordingRepo struct {
	*memRepo
	order []string
}

func (r *recordingRepo) SaveBatchStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	r.order = append(r.order, string(status))
	return r.memRepo.SaveBatchStatus(ctx, id, status)
}

func TestPersisterDropsStaleWrites(t *testing.T) {
	repo := &recordingRepo{memRepo: newMemRepo()}
	p := newPersister(repo, nil)
	write := func(gen uint64, status domain.BatchStatus) {
		p.enqueue(persistOp{name: "status", generation: gen, run: func(ctx context.Context, r domain.ProjectRepository) error {
			return r.SaveBatchStatus(ctx, "p", status)
		}})
	}
	write(1, domain.BatchStatusGenerating)
	write(2, domain.BatchStatusGenerating)
	write(1, domain.BatchStatusCompleted)
	p.enqueue(persistOp{name: "project", run: func(ctx context.Context, r domain.ProjectRepository) error {
		return r.SaveBatchStatus(ctx, "p", domain.BatchStatusIdle)
	}})
	write(2, domain.BatchStatusCompleted)
	if err := p.close(context.Background()); err != nil {
		t.Fatalf("close returned error: %v", err)
	}
	want := []string{"GENERATING", "GENERATING", "IDLE", "COMPLETED"}
	if strings.Join(repo.order, ",") != strings.Join(want, ",") {
		t.Fatalf("writes = %v, want %v", repo.order, want)
	}
	// Writes after close are dropped without blocking.
	write(3, domain.BatchStatusFailed)
}

// stalledRepo blocks image updates until release is closed.
type stalledRepo struct {
	*memRepo
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (r *stalledRepo) UpdateImage(ctx context.Context, id string, img domain.GeneratedImage) error {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.memRepo.UpdateImage(ctx, id, img)
}

func TestSlowRepositoryDoesNotHoldBackBatch(t *testing.T) {
	repo := &stalledRepo{memRepo: newMemRepo(), release: make(chan struct{}), started: make(chan struct{})}
	s := newTestSession(t, Options{Repository: repo, Concurrency: 8})
	project := smallProject()
	project.Sections = []domain.SectionConfig{{ID: "grid", Name: "Grid", ImageCount: 400}}
	if _, err := s.UpdateProject(context.Background(), project); err != nil {
		t.Fatalf("UpdateProject returned error: %v", err)
	}

	start := time.Now()
	if status := runBatch(t, s); status != domain.BatchStatusCompleted {
		t.Fatalf("batch status = %s", status)
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("batch took %s while the repository was stalled", took)
	}
	select {
	case <-repo.started:
	case <-time.After(2 * time.Second):
		t.Fatal("repository never saw an image update")
	}

	close(repo.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	rec, err := repo.LoadProject(context.Background(), DefaultProjectID)
	if err != nil {
		t.Fatalf("LoadProject returned error: %v", err)
	}
	if len(rec.Images) != 400 || rec.BatchStatus != domain.BatchStatusCompleted {
		t.Fatalf("stored %d images with status %s", len(rec.Images), rec.BatchStatus)
	}
	for _, img := range rec.Images {
		if img.Status != domain.ImageStatusCompleted {
			t.Fatalf("image %s stored as %s", img.ID, img.Status)
		}
	}
}

func TestPersisterCoalescesKeyedWrites(t *testing.T) {
	repo := &recordingRepo{memRepo: newMemRepo()}
	p := newPersister(repo, nil)
	running, gate := make(chan struct{}), make(chan struct{})
	p.enqueue(persistOp{name: "hold", run: func(context.Context, domain.ProjectRepository) error {
		close(running)
		<-gate
		return nil
	}})
	<-running
	for _, status := range []domain.BatchStatus{domain.BatchStatusGenerating, domain.BatchStatusFailed, domain.BatchStatusCompleted} {
		status := status
		p.enqueue(persistOp{name: "status", key: "status/1", generation: 1, run: func(ctx context.Context, r domain.ProjectRepository) error {
			return r.SaveBatchStatus(ctx, "p", status)
		}})
	}
	close(gate)
	if err := p.close(context.Background()); err != nil {
		t.Fatalf("close returned error: %v", err)
	}
	if strings.Join(repo.order, ",") != "COMPLETED" {
		t.Fatalf("writes = %v, want only the latest", repo.order)
	}
}

func TestOnLaunchKeepsNewestBatch(t *testing.T) {
	s := newTestSession(t, Options{})
	s.onLaunch(&batch.Batch{ID: "newer", Generation: 7})
	s.onLaunch(&batch.Batch{ID: "older", Generation: 6})
	s.mu.Lock()
	got := s.current.ID
	s.current = nil
	s.mu.Unlock()
	if got != "newer" {
		t.Fatalf("current batch = %s, want newer", got)
	}
}

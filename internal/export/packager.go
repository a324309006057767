// Package export turns the completed images of a state snapshot into a zip
// archive with one folder per section, converting images to the requested
// format on the way.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"asseto/internal/domain"
	"asseto/internal/infra"
	"asseto/internal/state"
	"asseto/pkg/zip"
)

// Source provides the snapshot an export reads.
type Source interface {
	Snapshot() state.State
}

// Options configures a Packager.
type Options struct {
	// Concurrency bounds parallel conversions. Values below 2 convert one
	// image at a time.
	Concurrency int
	JPEGQuality int
	Logger      *infra.Logger
}

// Packager builds export archives.
type Packager struct {
	source      Source
	concurrency int
	jpegQuality int
	logger      *infra.Logger
}

// Skipped records an image left out of an archive because it could not be
// converted.
type Skipped struct {
	Path    string `json:"path"`
	ImageID string `json:"image_id"`
	Reason  string `json:"reason"`
}

// Result is a finished archive.
type Result struct {
	Name    string
	Data    []byte
	Files   []string
	Skipped []Skipped
}

// SkippedPaths lists the archive paths that were skipped.
func (r Result) SkippedPaths() []string {
	out := make([]string, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		out = append(out, s.Path)
	}
	return out
}

// NewPackager builds a packager that reads items from source.
func NewPackager(source Source, opts Options) (*Packager, error) {
	if source == nil {
		return nil, errors.New("export: source is required")
	}
	p := &Packager{
		source:      source,
		concurrency: opts.Concurrency,
		jpegQuality: opts.JPEGQuality,
		logger:      opts.Logger,
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.jpegQuality < 1 || p.jpegQuality > 100 {
		p.jpegQuality = DefaultJPEGQuality
	}
	if p.logger == nil {
		p.logger = infra.NopLogger()
	}
	return p, nil
}

// ExportAll archives every exportable image of the project.
func (p *Packager) ExportAll(ctx context.Context, format domain.ExportFormat) (Result, error) {
	if !format.Valid() {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	snap := p.source.Snapshot()
	return p.build(ctx, ArchiveName(snap.Project.Name), planAll(snap, format), format)
}

// ExportSection archives the exportable images of one section.
func (p *Packager) ExportSection(ctx context.Context, sectionID string, format domain.ExportFormat) (Result, error) {
	if !format.Valid() {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	snap := p.source.Snapshot()
	section, ok := snap.Project.Section(sectionID)
	if !ok {
		return Result{}, fmt.Errorf("%w: section %q", domain.ErrNotFound, sectionID)
	}
	return p.build(ctx, SectionArchiveName(section.Name, format), planSection(snap, section, format), format)
}

// ConvertImage converts one image for individual download.
func (p *Packager) ConvertImage(img domain.GeneratedImage, format domain.ExportFormat) (string, []byte, error) {
	if !img.Exportable() {
		return "", nil, fmt.Errorf("%w: image %q", domain.ErrNoArtifact, img.ID)
	}
	data, err := Convert(img.Artifact, format, p.jpegQuality)
	if err != nil {
		return "", nil, err
	}
	return SingleFileName(img.ID, format), data, nil
}

// task is one planned archive file.
type task struct {
	path string
	item domain.GeneratedImage
}

// planAll lays out files section by section in project order. Images whose
// section is gone are collected in a trailing Uncategorized folder.
func planAll(snap state.State, format domain.ExportFormat) []task {
	namer := newFolderNamer()
	known := make(map[string]bool, len(snap.Project.Sections))
	var tasks []task
	for _, section := range snap.Project.Sections {
		known[section.ID] = true
		items := exportable(snap.SectionImages(section.ID))
		if len(items) == 0 {
			continue
		}
		tasks = append(tasks, folderTasks(snap.Project.Name, namer.next(section.Name), items, format)...)
	}

	var orphans []domain.GeneratedImage
	for _, img := range snap.Images() {
		if !known[img.SectionID] && img.Exportable() {
			orphans = append(orphans, img)
		}
	}
	if len(orphans) > 0 {
		tasks = append(tasks, folderTasks(snap.Project.Name, namer.next(UncategorizedFolder), orphans, format)...)
	}
	return tasks
}

func planSection(snap state.State, section domain.SectionConfig, format domain.ExportFormat) []task {
	items := exportable(snap.SectionImages(section.ID))
	if len(items) == 0 {
		return nil
	}
	return folderTasks(snap.Project.Name, newFolderNamer().next(section.Name), items, format)
}

func folderTasks(project, folder string, items []domain.GeneratedImage, format domain.ExportFormat) []task {
	out := make([]task, 0, len(items))
	for i, img := range items {
		out = append(out, task{
			path: folder + "/" + FileName(project, folder, i+1, format),
			item: img,
		})
	}
	return out
}

func exportable(items []domain.GeneratedImage) []domain.GeneratedImage {
	out := items[:0:0]
	for _, img := range items {
		if img.Exportable() {
			out = append(out, img)
		}
	}
	return out
}

type converted struct {
	data []byte
	err  error
}

// build converts the planned files and assembles the archive. A file that
// fails to convert is skipped and reported; the rest keep their names.
func (p *Packager) build(ctx context.Context, name string, tasks []task, format domain.ExportFormat) (Result, error) {
	if len(tasks) == 0 {
		return Result{}, domain.ErrEmptyExport
	}
	started := time.Now()

	results := make([]converted, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, t := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := Convert(t.item.Artifact, format, p.jpegQuality)
			results[i] = converted{data: data, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Name: name}
	entries := make([]zip.Entry, 0, len(tasks))
	for i, t := range tasks {
		if err := results[i].err; err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: t.path, ImageID: t.item.ID, Reason: err.Error()})
			p.logger.Warn().Err(err).Str("image_id", t.item.ID).Str("path", t.path).Msg("export: conversion failed, skipping")
			continue
		}
		entries = append(entries, zip.Entry{Path: t.path, Data: results[i].data})
		res.Files = append(res.Files, t.path)
	}

	data, err := zip.Archive(entries)
	if err != nil {
		return Result{}, fmt.Errorf("export: assemble archive: %w", err)
	}
	res.Data = data

	p.logger.Info().
		Str("archive", name).
		Str("format", string(format)).
		Int("files", len(res.Files)).
		Int("skipped", len(res.Skipped)).
		Int("bytes", len(data)).
		Dur("took", time.Since(started)).
		Msg("export: archive built")
	return res, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"asseto/internal/domain"
	"asseto/internal/export"
	"asseto/internal/infra"
	"asseto/internal/providers/genai"
	"asseto/internal/providers/image"
	"asseto/internal/session"
	"asseto/internal/state"
	"asseto/internal/storage"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate every image of a project and write the export archive",
	Long: `Generate runs one batch for the project file, waits for every image to
settle and writes the archive of completed images into the output directory.
Failed images are listed in the summary and left out of the archive.

Without GEMINI_API_KEY the images are synthetic placeholders.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("project", "p", "", "project YAML file (default: the starter project)")
	generateCmd.Flags().StringP("out", "o", "exports", "output directory for archives")
	generateCmd.Flags().StringP("format", "f", "png", "export format: png, jpeg or webp")
	generateCmd.Flags().String("section", "", "export only the section with this id")
	generateCmd.Flags().Int("concurrency", 0, "parallel generations (default: GENERATION_CONCURRENCY)")
	generateCmd.Flags().Duration("timeout", 0, "per-image timeout (default: GENERATION_TIMEOUT_SECONDS)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	projectPath, _ := flags.GetString("project")
	outDir, _ := flags.GetString("out")
	rawFormat, _ := flags.GetString("format")
	sectionID, _ := flags.GetString("section")
	concurrency, _ := flags.GetInt("concurrency")
	timeout, _ := flags.GetDuration("timeout")
	quiet, _ := flags.GetBool("quiet")

	format, err := domain.ParseExportFormat(rawFormat)
	if err != nil {
		return err
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.GenerationConcurrency = concurrency
	}
	if timeout > 0 {
		cfg.GenerationTimeout = timeout
	}
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	if quiet {
		level = "warn"
	}
	logger := infra.NewLoggerTo(cmd.ErrOrStderr(), "development", level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFileStore(outDir)
	if err != nil {
		return err
	}
	client, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		ImageModel: cfg.GeminiImageModel,
		TextModel:  cfg.GeminiTextModel,
		Logger:     &logger,
	})
	if err != nil {
		return err
	}
	if client.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set; generating synthetic placeholder images")
	}

	sess, err := session.New(ctx, session.Options{
		Generator:         image.NewGeminiGenerator(client),
		Concurrency:       cfg.GenerationConcurrency,
		Timeout:           cfg.GenerationTimeout,
		ExportConcurrency: cfg.ExportConcurrency,
		JPEGQuality:       cfg.ExportJPEGQuality,
		Logger:            &logger,
	})
	if err != nil {
		return err
	}
	defer sess.Close(context.Background())

	if projectPath != "" {
		project, err := loadProjectFile(projectPath)
		if err != nil {
			return err
		}
		if _, err := sess.UpdateProject(ctx, project); err != nil {
			return err
		}
	}

	started := time.Now()
	b, err := sess.StartBatch(ctx)
	if err != nil {
		return err
	}
	logger.Info().Str("batch_id", b.ID).Int("items", len(b.Items)).Msg("generate: batch started")
	status, err := sess.Wait(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printSummary(w, sess.Project(), sess.Images(), sess.Status().Progress, status, time.Since(started))

	var res export.Result
	if sectionID != "" {
		res, err = sess.ExportSection(ctx, sectionID, format)
	} else {
		res, err = sess.ExportAll(ctx, format)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	key, err := store.Write(ctx, res.Name, res.Data)
	if err != nil {
		return err
	}
	path, _ := store.Path(key)
	fmt.Fprintf(w, "wrote %s (%d file(s), %d bytes)\n", path, len(res.Files), len(res.Data))
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", s.Path, s.Reason)
	}
	if status == domain.BatchStatusFailed {
		return fmt.Errorf("batch %s did not complete", b.ID)
	}
	return nil
}

// printSummary lists per-section outcomes followed by the failed images.
func printSummary(w io.Writer, project domain.ProjectConfig, images []domain.GeneratedImage, p state.Progress, status domain.BatchStatus, took time.Duration) {
	type counts struct{ done, failed int }
	bySection := make(map[string]*counts, len(project.Sections))
	for _, s := range project.Sections {
		bySection[s.ID] = &counts{}
	}
	var failed []domain.GeneratedImage
	for _, img := range images {
		c := bySection[img.SectionID]
		if c == nil {
			continue
		}
		switch img.Status {
		case domain.ImageStatusCompleted:
			c.done++
		case domain.ImageStatusFailed:
			c.failed++
			failed = append(failed, img)
		}
	}

	fmt.Fprintf(w, "%s: %s in %s\n", project.Name, status, took.Round(time.Millisecond))
	for _, s := range project.Sections {
		c := bySection[s.ID]
		fmt.Fprintf(w, "  %-24s %d/%d completed", s.Name, c.done, s.ImageCount)
		if c.failed > 0 {
			fmt.Fprintf(w, ", %d failed", c.failed)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "total %d, completed %d, failed %d\n", p.Total, p.Completed, p.Failed)
	for _, img := range failed {
		fmt.Fprintf(w, "  failed %s: %s\n", img.ID, img.Error)
	}
}

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"asseto/internal/domain"
	"asseto/internal/export"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect and scaffold project files",
}

var projectInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Print the starter project as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		data, err := marshalProject(domain.DefaultProject(uuid.NewString))
		if err != nil {
			return err
		}
		if out == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s already exists", out)
		}
		return os.WriteFile(out, data, 0o644)
	},
}

var projectCheckCmd = &cobra.Command{
	Use:   "check <project.yaml>",
	Short: "Validate a project file and print its sections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProjectFile(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s (%s, %s)\n", cfg.Name, cfg.EffectiveCategory(), cfg.AspectRatio)
		total := 0
		for _, s := range cfg.Sections {
			fmt.Fprintf(w, "  %-24s %d image(s) -> %s/\n", s.Name, s.ImageCount, export.Sanitize(s.Name))
			total += s.ImageCount
		}
		fmt.Fprintf(w, "%d image(s) in %d section(s)\n", total, len(cfg.Sections))
		return nil
	},
}

func init() {
	projectInitCmd.Flags().StringP("out", "o", "", "write to a file instead of stdout")
	projectCmd.AddCommand(projectInitCmd, projectCheckCmd)
	rootCmd.AddCommand(projectCmd)
}

func loadProjectFile(path string) (domain.ProjectConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("open project: %w", err)
	}
	defer f.Close()
	return decodeProject(f)
}

// decodeProject reads a YAML project. Sections without an id get a stable
// one derived from their position so repeated runs name folders the same way.
func decodeProject(r io.Reader) (domain.ProjectConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg domain.ProjectConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ProjectConfig{}, fmt.Errorf("%w: empty project file", domain.ErrInvalidProject)
		}
		return domain.ProjectConfig{}, fmt.Errorf("%w: %v", domain.ErrInvalidProject, err)
	}
	for i := range cfg.Sections {
		if strings.TrimSpace(cfg.Sections[i].ID) == "" {
			cfg.Sections[i].ID = fmt.Sprintf("section-%d", i+1)
		}
	}
	if err := cfg.Validate(); err != nil {
		return domain.ProjectConfig{}, err
	}
	return cfg, nil
}

func marshalProject(cfg domain.ProjectConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	return buf.Bytes(), nil
}

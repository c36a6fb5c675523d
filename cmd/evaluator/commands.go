package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-evaluator/internal/config"
	"github.com/noah-isme/gema-evaluator/internal/dto"
	"github.com/noah-isme/gema-evaluator/internal/extract"
	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/internal/service"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

type cliDeps struct {
	loadConfig func() (config.Config, error)
	newFactory func(cfg config.Config) ai.Factory
	logger     zerolog.Logger
}

type gradeFlags struct {
	rubric         string
	provider       string
	apiKey         string
	includeScore   bool
	temperature    float32
	maxTokens      int
	temperatureSet bool
	maxTokensSet   bool
	outDir         string
	format         string
}

// gradeReport is the machine readable output of the grade command.
type gradeReport struct {
	Rubric    string                   `json:"rubric" yaml:"rubric"`
	Provider  string                   `json:"provider" yaml:"provider"`
	Completed int                      `json:"completed" yaml:"completed"`
	Failed    int                      `json:"failed" yaml:"failed"`
	Skipped   int                      `json:"unprocessable" yaml:"unprocessable"`
	Results   []dto.EvaluationResponse `json:"results" yaml:"results"`
}

func newRootCommand(deps cliDeps) *cobra.Command {
	root := &cobra.Command{
		Use:          "evaluator",
		Short:        "Grade academic submissions against a rubric with an AI model",
		SilenceUsage: true,
	}

	root.AddCommand(newExtractCommand())
	root.AddCommand(newGradeCommand(deps))
	return root
}

func newExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the plain text extracted from a PDF or DOCX document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			text, _, err := extract.Text(cmd.Context(), data, filepath.Base(args[0]))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newGradeCommand(deps cliDeps) *cobra.Command {
	flags := gradeFlags{}

	cmd := &cobra.Command{
		Use:   "grade --rubric <rubric.pdf> <submission>...",
		Short: "Evaluate one or more PDF or DOCX submissions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.temperatureSet = cmd.Flags().Changed("temperature")
			flags.maxTokensSet = cmd.Flags().Changed("max-tokens")
			return runGrade(cmd.Context(), cmd.OutOrStdout(), deps, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.rubric, "rubric", "r", "", "rubric PDF file")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "ai provider (gemini or openai), defaults to configuration")
	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "api key, defaults to the configured key for the provider")
	cmd.Flags().BoolVar(&flags.includeScore, "score", false, "ask for a numeric grade out of 10")
	cmd.Flags().Float32Var(&flags.temperature, "temperature", 0, "sampling temperature between 0 and 1, defaults to configuration")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "maximum response tokens between 100 and 2000, defaults to configuration")
	cmd.Flags().StringVarP(&flags.outDir, "out", "o", "", "directory where Evaluacion_<name>.txt reports are written")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("rubric")

	return cmd
}

func runGrade(ctx context.Context, out io.Writer, deps cliDeps, flags gradeFlags, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	format := strings.ToLower(flags.format)
	if format != "text" && format != "json" && format != "yaml" {
		return fmt.Errorf("unknown output format %q", flags.format)
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	sampling, err := resolveSampling(cfg, flags)
	if err != nil {
		return err
	}

	provider := flags.provider
	if provider == "" {
		provider = cfg.AIProvider
	}
	apiKey := flags.apiKey
	if apiKey == "" {
		apiKey = cfg.ProviderAPIKey(provider)
	}
	if apiKey == "" {
		return service.ErrCredentialMissing
	}

	uploads := service.NewUploadPolicy(cfg.MaxUploadMB)
	rubric, err := readRubric(ctx, uploads, flags.rubric)
	if err != nil {
		return err
	}

	evaluator, err := deps.newFactory(cfg).New(ctx, provider, apiKey)
	if err != nil {
		return err
	}

	grader := service.NewGrader(uploads, nil, deps.logger)
	report := gradeReport{Rubric: filepath.Base(flags.rubric), Provider: provider}
	for i, path := range files {
		doc, err := readDocument(uploads, path)
		if err != nil {
			return err
		}

		outcome := grader.Grade(ctx, evaluator, doc, service.GradeOptions{
			Rubric:       rubric,
			IncludeScore: flags.includeScore,
			Sampling:     sampling,
		})
		response := outcome.Response
		response.Position = i

		switch response.Status {
		case models.EvaluationStatusCompleted:
			report.Completed++
		case models.EvaluationStatusFailed:
			report.Failed++
		default:
			report.Skipped++
		}

		if flags.outDir != "" && response.Status != models.EvaluationStatusUnprocessable {
			if err := writeReport(flags.outDir, response); err != nil {
				return err
			}
		}
		report.Results = append(report.Results, response)
	}

	return printReport(out, format, report)
}

func resolveSampling(cfg config.Config, flags gradeFlags) (ai.Sampling, error) {
	sampling := ai.Sampling{
		Temperature: cfg.DefaultTemperature,
		MaxTokens:   cfg.DefaultMaxTokens,
		TopP:        cfg.TopP,
	}
	if flags.temperatureSet {
		if flags.temperature < 0 || flags.temperature > 1 {
			return ai.Sampling{}, fmt.Errorf("temperature must be between 0 and 1")
		}
		sampling.Temperature = flags.temperature
	}
	if flags.maxTokensSet {
		if flags.maxTokens < 100 || flags.maxTokens > 2000 {
			return ai.Sampling{}, fmt.Errorf("max tokens must be between 100 and 2000")
		}
		sampling.MaxTokens = flags.maxTokens
	}
	return sampling, nil
}

func readDocument(uploads service.UploadPolicy, path string) (service.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return service.Document{}, err
	}
	defer file.Close()

	return uploads.ReadFrom(filepath.Base(path), file)
}

func readRubric(ctx context.Context, uploads service.UploadPolicy, path string) (string, error) {
	doc, err := readDocument(uploads, path)
	if err != nil {
		return "", fmt.Errorf("read rubric: %w", err)
	}
	if extract.DetectFormat(doc.Data, doc.Name) != extract.FormatPDF {
		return "", fmt.Errorf("rubric %s: %w", doc.Name, service.ErrUploadTypeNotAllowed)
	}

	text, _, err := extract.Text(ctx, doc.Data, doc.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", service.ErrRubricUnreadable, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", service.ErrRubricUnreadable
	}
	return text, nil
}

func writeReport(dir string, response dto.EvaluationResponse) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(response.DownloadName))
	return os.WriteFile(target, []byte(response.Feedback), 0o644)
}

func printReport(out io.Writer, format string, report gradeReport) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		encoded, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		_, err = out.Write(encoded)
		return err
	}

	for _, result := range report.Results {
		fmt.Fprintf(out, "=== %s [%s]\n", result.FileName, result.Status)
		switch {
		case result.Status == models.EvaluationStatusUnprocessable:
			fmt.Fprintln(out, result.Message)
		default:
			fmt.Fprintln(out, result.Feedback)
		}
		if result.Score != nil {
			fmt.Fprintf(out, "Calificación: %g/%g\n", result.Score.Value, result.Score.OutOf)
		}
		fmt.Fprintln(out)
	}
	_, err := fmt.Fprintf(out, "%d completed, %d failed, %d unprocessable\n", report.Completed, report.Failed, report.Skipped)
	return err
}

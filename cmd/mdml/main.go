package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"mdml/internal/ast"
	"mdml/internal/astjson"
	"mdml/internal/config"
	"mdml/internal/crawler"
	"mdml/internal/pipeline"
	"mdml/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mdml",
		Short: "Markdown data-modeling language toolkit",
	}
	configPath string
	dbPath     string
	strict     bool
	outPath    string
	noSave     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the project manifest")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "mdml.db", "Path to the local build history database (SQLite)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Enable strict-mode style warnings")

	buildCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the AST document to this file instead of stdout")
	buildCmd.Flags().BoolVar(&noSave, "no-save", false, "Skip recording the run in the build history database")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(historyCmd)
}

// runPipeline discovers sources and produces the merged document. A document
// with errors is still a successful run; only infrastructure failures abort.
func runPipeline(root string) (*ast.Document, *config.Config) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Strict {
		strict = true
	}

	cr := crawler.New(cfg.SourcePatterns...)
	sources, err := cr.Discover(root)
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}
	if len(sources) == 0 {
		log.Fatalf("No sources found under %s", root)
	}

	var project *ast.ProjectInfo
	if cfg.Project.Name != "" {
		project = &ast.ProjectInfo{Name: cfg.Project.Name, Version: cfg.Project.Version}
	}

	doc, err := pipeline.Run(context.Background(), sources, pipeline.Options{
		Strict:  strict,
		Project: project,
	})
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}
	return doc, cfg
}

func printDiagnostics(doc *ast.Document) {
	for _, d := range doc.Errors {
		fmt.Println(d)
	}
	for _, d := range doc.Warnings {
		fmt.Println(d)
	}
	fmt.Printf("%d file(s), %d error(s), %d warning(s)\n", len(doc.Sources), len(doc.Errors), len(doc.Warnings))
}

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Parse and validate the project, printing diagnostics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		doc, _ := runPipeline(root)
		printDiagnostics(doc)
		if len(doc.Errors) > 0 {
			os.Exit(1)
		}
	},
}

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Produce the merged AST document as JSON",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		doc, _ := runPipeline(root)
		printDiagnostics(doc)

		data, err := astjson.MarshalValidated(doc)
		if err != nil {
			log.Fatalf("Failed to serialize document: %v", err)
		}

		if outPath != "" {
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				log.Fatalf("Failed to write %s: %v", outPath, err)
			}
		} else {
			fmt.Println(string(data))
		}

		if !noSave {
			store, err := storage.Open(dbPath)
			if err != nil {
				log.Fatalf("Failed to open build database: %v", err)
			}
			defer store.Close()
			id, err := store.SaveRun(context.Background(), doc, strict)
			if err != nil {
				log.Fatalf("Failed to record run: %v", err)
			}
			fmt.Printf("Recorded run %s in %s\n", id, dbPath)
		}

		if len(doc.Errors) > 0 {
			os.Exit(1)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent recorded builds",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open(dbPath)
		if err != nil {
			log.Fatalf("Failed to open build database: %v", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(context.Background(), 20)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs.")
			return
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  project=%s  errors=%d  warnings=%d  strict=%v\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"), r.ID, r.Project, r.ErrorCount, r.WarningCount, r.Strict)
		}
	},
}

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/studynotes/ai"
	"github.com/hrygo/studynotes/ai/intent"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [query]",
	Short: "Classify queries and print the verdicts as JSON lines",
	RunE:  runClassify,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List classifier presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		configs, err := newConfigStore(ai.NewConfigFromProfile(instanceProfile).Classifier)
		if err != nil {
			return err
		}
		return printPresets(cmd.OutOrStdout(), configs)
	},
}

func init() {
	classifyCmd.Flags().Bool("enhanced", false, "run the enhanced analysis (defaults to the preset's setting)")
	classifyCmd.Flags().String("file", "", "read one query per line from this file")
}

// classification is one output line of the classify command.
type classification struct {
	Query  string         `json:"query"`
	Result *intent.Result `json:"result"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	var queries []string
	switch {
	case file != "" && len(args) > 0:
		return errors.New("pass either a query or --file, not both")
	case file != "":
		var err error
		if queries, err = readQueries(file); err != nil {
			return err
		}
	case len(args) > 0:
		queries = []string{strings.Join(args, " ")}
	default:
		return errors.New("a query or --file is required")
	}

	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}
	aiConfig := ai.NewConfigFromProfile(instanceProfile)
	configs, err := newConfigStore(aiConfig.Classifier)
	if err != nil {
		return err
	}
	cfg := configs.Snapshot()

	enhanced := cfg.EnhancedAnalysis
	if cmd.Flags().Changed("enhanced") {
		enhanced, _ = cmd.Flags().GetBool("enhanced")
	}

	classifier := intent.NewClassifier(intent.WithCache(intent.NewResultCache(intent.CacheConfig{
		Capacity: aiConfig.Classifier.CacheSize,
		TTL:      aiConfig.Classifier.CacheTTL,
	})))
	results, err := classifier.AnalyzeBatch(cmd.Context(), queries, cfg, enhanced, runtime.NumCPU())
	if err != nil {
		return err
	}
	return writeClassifications(cmd.OutOrStdout(), queries, results)
}

// readQueries reads non-blank lines, skipping # comments.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return queries, nil
}

func writeClassifications(w io.Writer, queries []string, results []*intent.Result) error {
	enc := json.NewEncoder(w)
	for i, result := range results {
		if err := enc.Encode(classification{Query: queries[i], Result: result}); err != nil {
			return err
		}
	}
	return nil
}

func printPresets(w io.Writer, configs *intent.ConfigStore) error {
	presets := configs.Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	active := configs.PresetName()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNAME\tTHRESHOLD\tSTRICT\tENHANCED\tENABLED\tBUDGET(ms)")
	for _, name := range names {
		cfg := presets[name]
		marker := ""
		if name == active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%t\t%t\t%t\t%d\n",
			marker, name, cfg.ContextThreshold, cfg.StrictMode, cfg.EnhancedAnalysis, cfg.Enabled, cfg.MaxAnalysisBudgetMs)
	}
	return tw.Flush()
}

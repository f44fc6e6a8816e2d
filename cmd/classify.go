package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/abhisek/taxassign/internal/classify"
	"github.com/abhisek/taxassign/internal/config"
	"github.com/abhisek/taxassign/internal/hits"
	"github.com/abhisek/taxassign/internal/store"
	"github.com/abhisek/taxassign/internal/taxonomy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Assign each query in a BLAST result to a taxon",
	Long: `Reads BLAST hits grouped by query, from a file or stdin, and prints one
assignment per query in input order.

Tabular input defaults to the columns
  qseqid sseqid nident length qstart qend qlen evalue
and can be changed with --columns using BLAST's -outfmt syntax.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.String("format", "tsv", "Input format: tsv or json")
	f.String("columns", "", "Tabular column list, e.g. \"6 qseqid sseqid pident qcovs evalue\"")
	f.Float64("min-identity", 0, "Minimum percent identity (overrides config)")
	f.Float64("min-coverage", 0, "Minimum percent query coverage (overrides config)")
	f.Float64("min-ratio", 0, "Minimum e-value ratio for independent hits (overrides config)")
	f.String("output", "text", "Output format: text or json")
	f.Bool("lineage", false, "Print the full lineage of each assignment")
	f.Bool("save", false, "Store the assignments under a new run id")
	f.String("metrics-file", "", "Write Prometheus metrics for the run to this file")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	output, _ := cmd.Flags().GetString("output")
	if output != "text" && output != "json" {
		return fmt.Errorf("unsupported output %q (want text or json)", output)
	}

	queries, err := readQueries(cmd, args)
	if err != nil {
		return err
	}

	cfg, logger, st, closeFn, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	policy, err := cutoffPolicy(cmd, cfg.Cutoffs)
	if err != nil {
		return err
	}
	logger.Debug("classifying", "queries", len(queries), "policy", policy.String())

	var reg *prometheus.Registry
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	opts := []classify.Option{classify.WithLogger(logger)}
	if metricsFile != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, classify.WithMetrics(classify.NewMetrics(reg)))
	}

	lookup := taxonomy.WithLogging(taxonomy.NewResolver(st), logger)
	qc := classify.WithRetry(classify.New(lookup, policy, opts...), cfg.Retry.Classify())

	outcomes, runErr := classify.ClassifyAll(ctx, qc, queries)

	var runID string
	if save, _ := cmd.Flags().GetBool("save"); save {
		runID = store.NewRunID()
	}

	w := cmd.OutOrStdout()
	withLineage, _ := cmd.Flags().GetBool("lineage")
	enc := json.NewEncoder(w)
	var classified, unclassified, failed int
	for i, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
			logger.Error("query failed", "query", o.QueryID, "error", o.Err)
		case o.Result.Classified():
			classified++
		default:
			unclassified++
		}

		if output == "json" {
			if err := enc.Encode(jsonOutcome(o)); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		} else {
			renderOutcome(w, o, withLineage)
		}

		if runID != "" && o.Err == nil {
			if err := st.SaveAssignment(ctx, runID, i, o.Result); err != nil {
				return err
			}
		}
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	renderSummary(cmd.ErrOrStderr(), len(queries), classified, unclassified, failed, runID)

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(queries))
	}
	return nil
}

func readQueries(cmd *cobra.Command, args []string) ([]hits.Query, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open hits: %w", err)
		}
		defer f.Close()
		r = f
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "tsv":
		columns := hits.DefaultColumns
		if spec, _ := cmd.Flags().GetString("columns"); spec != "" {
			var err error
			if columns, err = hits.ParseColumns(spec); err != nil {
				return nil, err
			}
		}
		return hits.ReadTabular(r, columns)
	case "json":
		return hits.ReadJSON(r)
	default:
		return nil, fmt.Errorf("unsupported format %q (want tsv or json)", format)
	}
}

// cutoffPolicy builds the policy from config with any cutoff flags the user
// set on top.
func cutoffPolicy(cmd *cobra.Command, c config.CutoffsConfig) (classify.CutoffPolicy, error) {
	for flag, dst := range map[string]**float64{
		"min-identity": &c.MinIdentity,
		"min-coverage": &c.MinCoverage,
		"min-ratio":    &c.MinEvalueRatio,
	} {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetFloat64(flag)
			*dst = &v
		}
	}
	return c.Policy()
}

type failedOutcome struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

func jsonOutcome(o classify.Outcome) any {
	if o.Err != nil {
		return failedOutcome{QueryID: o.QueryID, Status: "failed", Error: o.Err.Error()}
	}
	return o.Result
}

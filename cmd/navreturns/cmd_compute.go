package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/navreturns/internal/config"
	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/utils"
)

var (
	computeCodes       []string
	computeMethodology string
)

// computeCmd implements 'navreturns compute'
var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Fetch funds and print their return profiles as JSON",
	Long: `Fetch one or more schemes from the data provider (honouring CACHE_MODE)
and print each fund's return profile as JSON. Nothing is stored or exported.

Examples:
  navreturns compute --code 120503
  navreturns compute --code 120503,118989 --methodology lumpsum`,
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringSliceVar(&computeCodes, "code", nil, "Scheme code(s), comma separated or repeated")
	computeCmd.Flags().StringVar(&computeMethodology, "methodology", "", "periodic or lumpsum (default METHODOLOGY)")
	_ = computeCmd.MarkFlagRequired("code")
}

// computeOutput is one fund's entry in the compute output
type computeOutput struct {
	Fund    domain.Fund           `json:"fund"`
	Profile domain.ReturnProfile  `json:"profile"`
	Details []domain.WindowReturn `json:"details"`
	Error   string                `json:"error,omitempty"`
}

func runCompute(cmd *cobra.Command, args []string) error {
	codes := utils.SchemeCodes(strings.Join(computeCodes, ","))
	if len(codes) == 0 {
		return fmt.Errorf("at least one scheme code is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if computeMethodology != "" {
		m, err := domain.ParseMethodology(computeMethodology)
		if err != nil {
			return err
		}
		cfg.Methodology = string(m)
	}
	// One-off lookups never publish
	cfg.Publish = config.PublishConfig{}
	log := newLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	container, _, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	methodology := container.Runner.Methodology()
	out := make([]computeOutput, 0, len(codes))
	for _, code := range codes {
		res := container.Runner.ComputeFund(ctx, domain.Fund{SchemeCode: code}, methodology)
		entry := computeOutput{Fund: res.Fund, Profile: res.Profile, Details: res.Profile.Details()}
		if res.Err != nil {
			entry.Error = res.Err.Error()
			log.Warn().Err(res.Err).Str("scheme_code", code).Msg("Failed to compute fund")
		}
		out = append(out, entry)
	}

	return writeComputeOutput(cmd.OutOrStdout(), out)
}

// writeComputeOutput prints a single object for one fund and an array otherwise
func writeComputeOutput(w io.Writer, out []computeOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(out) == 1 {
		return enc.Encode(out[0])
	}
	return enc.Encode(out)
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"billing/internal/logger"
	"billing/internal/metrics"
	"billing/internal/records"
)

var clientCmd = &cobra.Command{
	Use:   "client <code>",
	Short: "Print the profile and score of a client",
	Long: `Print the billing profile of one client: score category, totals billed,
received and due, late titles and the billing per competence period.

The code is the Codigo column of the receivables sheet.`,
	Example: `  billing client 1042
  billing client 1042 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.Flags().Bool("json", false, "Print JSON instead of text")
}

func runClient(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("client")

	code, err := strconv.Atoi(args[0])
	if err != nil || code <= 0 {
		return fmt.Errorf("client code must be a positive integer, got %q", args[0])
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}

	snap, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	profile, ok := snap.Engine(cfg.GetRatingConfig()).ClientProfile(code, snap.Clients)
	if !ok {
		return fmt.Errorf("client %d has no billing records in the retention window", code)
	}
	log.Info().Int("code", code).Str("category", string(profile.Category)).Msg("Client profile built")

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	}
	printClientProfile(profile)
	return nil
}

func printClientProfile(p metrics.ClientProfile) {
	fmt.Printf("Cliente: %s (%d)\n", p.Name, p.Code)
	fmt.Printf("Score: %s\n", p.Category)
	if m := p.Master; m != nil {
		if m.TaxID != "" {
			fmt.Printf("CNPJ: %s\n", m.TaxID)
		}
		if m.Segment != "" {
			fmt.Printf("Segmento: %s\n", m.Segment)
		}
		if m.Location != "" {
			fmt.Printf("Lotação: %s\n", m.Location)
		}
	}
	fmt.Printf("Títulos: %d (%d com atraso)\n", p.Titles, p.LateTitles)
	fmt.Printf("Faturado: %s\n", records.FormatBRL(p.TotalBilled))
	fmt.Printf("Recebido: %s\n", records.FormatBRL(p.TotalReceived))
	fmt.Printf("A receber: %s\n", records.FormatBRL(p.TotalDue))
	if p.LastIssue != nil {
		fmt.Printf("Última emissão: %s\n", p.LastIssue.Format("02/01/2006"))
	}
	if len(p.ByCompetence) > 0 {
		fmt.Println("Por competência:")
		for _, c := range p.ByCompetence {
			fmt.Printf("  %s  %s\n", c.Competence, records.FormatBRL(c.Amount))
		}
	}
}

package assistant

import (
	"fmt"
	"strings"

	"billing/internal/metrics"
	"billing/internal/records"
)

func systemPrompt(dataContext string) string {
	var b strings.Builder
	b.WriteString("Você é um analista financeiro de uma empresa de logística. ")
	b.WriteString("Responda em português, de forma objetiva, usando apenas os dados fornecidos. ")
	b.WriteString("Valores monetários estão em reais (R$).")
	if dataContext != "" {
		b.WriteString("\n\nDados disponíveis:\n")
		b.WriteString(dataContext)
	}
	return b.String()
}

func comparisonPrompt(location string, d metrics.PeriodDiff) string {
	var b strings.Builder
	scope := "todas as unidades"
	if location != "" {
		scope = location
	}
	fmt.Fprintf(&b, "Compare o faturamento de %s entre %s (atual) e %s (anterior).\n",
		scope, d.CurrentLabel, d.PreviousLabel)
	b.WriteString(DescribeDiff(d))
	b.WriteString("\nExplique as principais variações e possíveis riscos em até três parágrafos.")
	return b.String()
}

// DescribeDiff renders a period diff as plain text lines.
func DescribeDiff(d metrics.PeriodDiff) string {
	var b strings.Builder
	writeDelta(&b, "Armazenagem", d.Storage)
	writeDelta(&b, "Aluguel", d.Rental)
	writeDelta(&b, "Total faturado", d.Total)
	writeDelta(&b, "Saldo a receber", d.AmountDue)
	return b.String()
}

func writeDelta(b *strings.Builder, label string, d metrics.Delta) {
	fmt.Fprintf(b, "- %s: %s -> %s (variação %s", label,
		records.FormatBRL(d.Previous), records.FormatBRL(d.Current), records.FormatBRL(d.Change))
	if d.ChangePct != nil {
		fmt.Fprintf(b, ", %s", records.FormatPercent(*d.ChangePct))
	}
	fmt.Fprintf(b, "; títulos %d -> %d)\n", d.Count[0], d.Count[1])
}

// DescribeSummary renders the dashboard figures the assistant answers about.
func DescribeSummary(title string, s metrics.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Painel: %s\n", title)
	fmt.Fprintf(&b, "Armazenagem: %s em %d títulos\n", records.FormatBRL(s.KPIs.Storage.Amount), s.KPIs.Storage.Count)
	fmt.Fprintf(&b, "Aluguel: %s em %d títulos\n", records.FormatBRL(s.KPIs.Rental.Amount), s.KPIs.Rental.Count)
	fmt.Fprintf(&b, "Total: %s (%s do faturamento global)\n",
		records.FormatBRL(s.KPIs.Total.Amount), records.FormatPercent(s.KPIs.ShareOfGlobal))
	fmt.Fprintf(&b, "Rating: %s (score %.1f, inadimplência %s)\n",
		s.Rating.Grade, s.Rating.Score, records.FormatPercent(s.Rating.OverduePct))

	writeClients(&b, "Maiores clientes de armazenagem", s.Ranking.Top)
	writeClients(&b, "Menores clientes de armazenagem", s.Ranking.Bottom)
	writeClients(&b, "Inadimplentes", s.Distribution.Delinquent)
	writeClients(&b, "Pagadores em alerta", s.Distribution.OnAlert)
	writeClients(&b, "Saldo em aberto", s.Outstanding)
	return b.String()
}

const maxListedClients = 10

func writeClients(b *strings.Builder, heading string, clients []metrics.ClientAmount) {
	if len(clients) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", heading)
	for i, c := range clients {
		if i == maxListedClients {
			fmt.Fprintf(b, "  ... e mais %d\n", len(clients)-maxListedClients)
			break
		}
		fmt.Fprintf(b, "  %s: %s\n", c.Name, records.FormatBRL(c.Amount))
	}
}

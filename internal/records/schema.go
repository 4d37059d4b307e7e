package records

import (
	"fmt"
	"strings"
)

// Column names of the receivables sheet (BaseReceber), in sheet order.
const (
	ColCode             = "Codigo"
	ColClient           = "Cliente"
	ColDueDate          = "Vencimento"
	ColIssueDate        = "Emissao"
	ColInvoiceNumber    = "NF"
	ColOriginLocation   = "Lotacao_Origem"
	ColRevenueType      = "TP_Receita"
	ColRevenueDetail    = "TP_Receita_Detalhada"
	ColNoteAmount       = "Vlr_NF"
	ColInvoiceAmount    = "Vlr_Titulo"
	ColAmountDue        = "Vlr_Receber"
	ColInterestAndFines = "Vlr_Juros_Multa"
	ColPaymentDate      = "Data_Pagamento"
	ColAmountReceived   = "Vlr_Recebido"
	ColDiscount         = "Vlr_Desconto"
	ColStatus           = "Status_titulo"
	ColSummaryType      = "Tipo_Resumido"
	ColReceivedAt       = "Recebido_em"
	ColReceivedAtBank   = "Recebido_em_Banco"
	ColPaidLate         = "Recebido_em_Atraso"
	ColPaidLateInterest = "Recebido_em_Atraso_Juros"
	ColNotes            = "Observacao"
	ColBilledBy         = "Faturado_Por"
	ColBilledAt         = "Faturado_Em"
	ColCompetence       = "Competencia"
	ColFortnightly      = "Quinzenal"
	ColLocation         = "Lotacao"
	ColDaysLate         = "Dias_Atraso"
)

// Column names of the client master sheet.
const (
	ColMasterCode      = "Codigo"
	ColMasterName      = "Cliente"
	ColMasterTaxID     = "CNPJ"
	ColMasterSegment   = "Segmento"
	ColMasterLocation  = "Lotacao"
	ColMasterAdValorem = "Ad_Valorem"
	ColMasterActive    = "Ativo"
)

// BillingColumns is the fixed layout of the range BaseReceber!A:AB.
var BillingColumns = []string{
	ColCode, ColClient, ColDueDate, ColIssueDate, ColInvoiceNumber, ColOriginLocation,
	ColRevenueType, ColRevenueDetail, ColNoteAmount, ColInvoiceAmount, ColAmountDue,
	ColInterestAndFines, ColPaymentDate, ColAmountReceived, ColDiscount, ColStatus,
	ColSummaryType, ColReceivedAt, ColReceivedAtBank, ColPaidLate, ColPaidLateInterest,
	ColNotes, ColBilledBy, ColBilledAt, ColCompetence, ColFortnightly, ColLocation,
	ColDaysLate,
}

// ClientColumns is the fixed layout of the client master range.
var ClientColumns = []string{
	ColMasterCode, ColMasterName, ColMasterTaxID, ColMasterSegment,
	ColMasterLocation, ColMasterAdValorem, ColMasterActive,
}

// Schema maps column names to positions within a sheet row.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema builds a schema from an ordered column list.
func NewSchema(columns []string) (*Schema, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("schema: empty column name at position %d", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("schema: duplicate column %q", name)
		}
		index[name] = i
	}
	return &Schema{columns: columns, index: index}, nil
}

// MustSchema is NewSchema for package-level layouts known to be valid.
func MustSchema(columns []string) *Schema {
	s, err := NewSchema(columns)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns the column names in order.
func (s *Schema) Columns() []string {
	return s.columns
}

// Require fails when any of the named columns is missing.
func (s *Schema) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := s.index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema: missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// Get returns the trimmed cell for the named column, or "" when the row is
// shorter than the schema or the column is unknown.
func (s *Schema) Get(row []interface{}, name string) string {
	i, ok := s.index[name]
	if !ok {
		return ""
	}
	return getString(row, i)
}

// getString safely extracts a string value from a row slice
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}

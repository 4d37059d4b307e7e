package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Revenue types as they appear in the TP_Receita column
const (
	RevenueStorage = "Armazenagem"
	RevenueRental  = "Aluguel"
)

// Title statuses as they appear in the Status_titulo column
const (
	StatusSettled = "Quitado"
	StatusLate    = "Atrasado"
	StatusOpen    = "Em Aberto"
)

// PaidLateYes is the Recebido_em_Atraso value for titles received after the due date
const PaidLateYes = "Sim"

// BillingRecord is one invoice/title line of the receivables sheet.
// Records are immutable once normalized.
type BillingRecord struct {
	// Client
	Code       int    // Codigo - shared by every record of the same client
	ClientName string // Cliente

	// Dates
	IssueDate   time.Time  // Emissao - always set for retained records
	DueDate     *time.Time // Vencimento (nil if absent or malformed)
	PaymentDate *time.Time // Data_Pagamento (nil if unpaid)

	// Amounts
	NoteAmount       decimal.Decimal // Vlr_NF
	InvoiceAmount    decimal.Decimal // Vlr_Titulo
	AmountDue        decimal.Decimal // Vlr_Receber
	InterestAndFines decimal.Decimal // Vlr_Juros_Multa
	AmountReceived   decimal.Decimal // Vlr_Recebido
	Discount         decimal.Decimal // Vlr_Desconto

	// Classification
	RevenueType      string // TP_Receita
	RevenueDetail    string // TP_Receita_Detalhada
	Status           string // Status_titulo
	PaidLate         string // Recebido_em_Atraso
	Location         string // Lotacao
	OriginLocation   string // Lotacao_Origem
	CompetencePeriod string // Competencia (MM/YYYY)
	DaysLate         int    // Dias_Atraso

	// Pass-through metadata
	InvoiceNumber string // NF
	BilledBy      string // Faturado_Por
	Notes         string // Observacao
}

// IsStorage reports whether the record is a storage fee
func (r *BillingRecord) IsStorage() bool {
	return r.RevenueType == RevenueStorage
}

// IsRental reports whether the record is a rental fee
func (r *BillingRecord) IsRental() bool {
	return r.RevenueType == RevenueRental
}

// IsLate reports whether the title was paid late or is currently late
func (r *BillingRecord) IsLate() bool {
	return r.PaidLate == PaidLateYes || r.Status == StatusLate
}

// IsOverdue reports whether the title still has an unsettled balance
func (r *BillingRecord) IsOverdue() bool {
	return r.Status == StatusLate || r.Status == StatusOpen
}

// ClientMaster is one row of the client master sheet
type ClientMaster struct {
	Code      int
	Name      string
	TaxID     string // CNPJ
	Segment   string
	Location  string
	AdValorem string // contract fee proportional to declared cargo value, passed through as written
	Active    bool
}

package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"vetbridge-affiliate/internal/pkg/money"
)

// Version is the export contract version sent as X-Export-Version.
// Column order and money formatting are fixed for a given version.
const Version = 1

// Levels is the number of per-level subtotal columns
const Levels = 6

// Header is the column order of Version 1
var Header = []string{
	"affiliate_id", "name", "email", "role", "referral_code", "status", "comp_active",
	"direct_sales", "sales_volume", "total_commissions", "pending", "approved", "paid",
	"level_1", "level_2", "level_3", "level_4", "level_5", "level_6",
}

// ErrBadHeader is returned when a file does not start with Header
var ErrBadHeader = errors.New("export header does not match version 1 columns")

// Row is one affiliate line of the export. Money fields are cents.
type Row struct {
	AffiliateID      uint
	Name             string
	Email            string
	Role             string
	ReferralCode     string
	Status           string
	CompActive       bool
	DirectSales      int64
	SalesVolumeCents int64
	TotalCents       int64
	PendingCents     int64
	ApprovedCents    int64
	PaidCents        int64
	LevelCents       [Levels]int64
}

// Writer streams rows as CSV
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter creates a CSV export writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// Write writes one row, emitting the header first
func (w *Writer) Write(row *Row) error {
	if !w.wroteHeader {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}
	return w.w.Write(row.record())
}

// WriteHeader writes the header line once
func (w *Writer) WriteHeader() error {
	if w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	return w.w.Write(Header)
}

// Flush flushes buffered output and reports any write error
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func (r *Row) record() []string {
	rec := []string{
		strconv.FormatUint(uint64(r.AffiliateID), 10),
		r.Name,
		r.Email,
		r.Role,
		r.ReferralCode,
		r.Status,
		strconv.FormatBool(r.CompActive),
		strconv.FormatInt(r.DirectSales, 10),
		money.FormatCents(r.SalesVolumeCents),
		money.FormatCents(r.TotalCents),
		money.FormatCents(r.PendingCents),
		money.FormatCents(r.ApprovedCents),
		money.FormatCents(r.PaidCents),
	}
	for _, cents := range r.LevelCents {
		rec = append(rec, money.FormatCents(cents))
	}
	return rec
}

// ReadAll parses a Version 1 export back into rows
func ReadAll(r io.Reader) ([]*Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrBadHeader
		}
		return nil, err
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, ErrBadHeader
		}
	}

	var rows []*Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

func parseRecord(rec []string) (*Row, error) {
	id, err := strconv.ParseUint(rec[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("affiliate_id: %w", err)
	}
	compActive, err := strconv.ParseBool(rec[6])
	if err != nil {
		return nil, fmt.Errorf("comp_active: %w", err)
	}
	direct, err := strconv.ParseInt(rec[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("direct_sales: %w", err)
	}

	row := &Row{
		AffiliateID:  uint(id),
		Name:         rec[1],
		Email:        rec[2],
		Role:         rec[3],
		ReferralCode: rec[4],
		Status:       rec[5],
		CompActive:   compActive,
		DirectSales:  direct,
	}

	moneyCols := []*int64{&row.SalesVolumeCents, &row.TotalCents, &row.PendingCents, &row.ApprovedCents, &row.PaidCents}
	for i := range row.LevelCents {
		moneyCols = append(moneyCols, &row.LevelCents[i])
	}
	for i, dst := range moneyCols {
		col := 8 + i
		cents, err := money.ParseStoredCents(rec[col])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", Header[col], err)
		}
		*dst = cents
	}
	return row, nil
}

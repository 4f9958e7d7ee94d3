package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	rows := []*Row{
		{
			AffiliateID: 7, Name: "Dana, Reyes", Email: "dana@example.com", Role: "master",
			ReferralCode: "AB12CD34", Status: "active", CompActive: true,
			DirectSales: 3, SalesVolumeCents: 450000, TotalCents: 70050,
			PendingCents: 50050, ApprovedCents: 20000, PaidCents: 0,
			LevelCents: [Levels]int64{45000, 15000, 10050, 0, 0, 0},
		},
		{AffiliateID: 8, Name: "Lee", Role: "affiliate", ReferralCode: "ZZ", Status: "inactive"},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Flush())

	firstLine := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, strings.Join(Header, ","), firstLine)
	assert.Contains(t, buf.String(), `"Dana, Reyes"`)
	assert.Contains(t, buf.String(), "4500.00,700.50,500.50,200.00,0.00")

	back, err := ReadAll(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}

func TestEmptyExportHasHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	rows, err := ReadAll(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadAllRejectsForeignHeader(t *testing.T) {
	_, err := ReadAll(strings.NewReader(strings.Repeat("x,", len(Header)-1) + "x\n"))
	assert.ErrorIs(t, err, ErrBadHeader)
}

package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Nine-box matrix",
		Summary: []SummaryLine{{Label: "Scope", Value: "global"}},
		Headers: []string{"employee", "performance", "potential"},
		Rows: []map[string]string{
			{"employee": "Ana, Lopez", "performance": "72.5", "potential": "41"},
			{"employee": "Bo", "performance": "39"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.Equal(t, "employee,performance,potential\n\"Ana, Lopez\",72.5,41\nBo,39,\n", string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestColumnWidthsFillTable(t *testing.T) {
	widths := columnWidths([]string{"a", "recommendation_title"})
	assert.InDelta(t, pdfTableWidth, widths[0]+widths[1], 0.0001)
	assert.Greater(t, widths[1], widths[0])
}

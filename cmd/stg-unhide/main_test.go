package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faanross/simulacra_ppm/internal/steg"
)

func TestReportOutput(t *testing.T) {
	assert.Equal(t, os.Stdout, reportOutput(true))
	assert.Equal(t, os.Stderr, reportOutput(false))
}

func TestPrintReportWritesOnlyToGivenWriter(t *testing.T) {
	pixels := make([]byte, 96)
	report := steg.Default().Analyze(pixels)

	var buf bytes.Buffer
	printReport(&buf, report)
	assert.Contains(t, buf.String(), "LSB analysis")
	assert.Contains(t, buf.String(), "Pixel bytes:   96")
	assert.Contains(t, buf.String(), "none found")
}

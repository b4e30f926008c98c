package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SavePDF(t *testing.T) {
	base := t.TempDir()
	s := NewFileStore(base, false, nil)

	path, err := s.SavePDF("12345678000195", "000007", "Cliente / Filial: Centro", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "12345678000195", "000007 - Cliente _ Filial_ Centro.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_SavePDF_Empty(t *testing.T) {
	_, err := NewFileStore(t.TempDir(), false, nil).SavePDF("1", "000001", "x", nil)
	assert.Error(t, err)
}

func TestFileStore_PDFPath_WithoutCustomer(t *testing.T) {
	s := NewFileStore("/dados", false, nil)
	assert.Equal(t, filepath.Join("/dados", "123", "000001 - sem tomador.pdf"), s.PDFPath("123", "000001", "  "))
}

func TestFileStore_SaveSnapshot(t *testing.T) {
	base := t.TempDir()
	at := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)

	disabled := NewFileStore(base, false, nil)
	path, err := disabled.SaveSnapshot("123", "DPS1", StageSigned, []byte("<DPS/>"), at)
	require.NoError(t, err)
	assert.Empty(t, path)

	enabled := NewFileStore(base, true, nil)
	for _, stage := range []Stage{StagePreSign, StageSigned, StageSendError, StageQueryError} {
		path, err := enabled.SaveSnapshot("123", "DPS1", stage, []byte("<DPS/>"), at)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "123", "xml", "2024-05", "DPS1-"+string(stage)+".xml"), path)
		assert.FileExists(t, path)
	}
}

// Package storage grava os artefatos da emissão (PDF e snapshots de XML) em disco.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

// Stage identifica o momento do pipeline em que o XML foi gravado
type Stage string

const (
	StagePreSign    Stage = "pre-assinatura"
	StageSigned     Stage = "assinado"
	StageSendError  Stage = "erro-envio"
	StageQueryError Stage = "erro-consulta"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "",
)

// FileStore grava os arquivos sob um diretório base, separados pelo CNPJ do prestador
type FileStore struct {
	baseDir   string
	snapshots bool
	log       logger.Logger
}

// NewFileStore cria uma nova instância de FileStore.
// Com snapshots desativado, SaveSnapshot não grava nada.
func NewFileStore(baseDir string, snapshots bool, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &FileStore{baseDir: baseDir, snapshots: snapshots, log: log}
}

// PDFPath monta o caminho {base}/{cnpj}/{numero} - {tomador}.pdf
func (s *FileStore) PDFPath(taxID, number, customerName string) string {
	name := sanitize(customerName)
	if name == "" {
		name = "sem tomador"
	}
	return filepath.Join(s.baseDir, sanitize(taxID), fmt.Sprintf("%s - %s.pdf", sanitize(number), name))
}

// SavePDF grava o PDF da nota e retorna o caminho final
func (s *FileStore) SavePDF(taxID, number, customerName string, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", fmt.Errorf("falha ao salvar PDF: conteúdo vazio")
	}
	path := s.PDFPath(taxID, number, customerName)
	if err := write(path, pdf); err != nil {
		return "", fmt.Errorf("falha ao salvar PDF: %w", err)
	}
	s.log.Debug("PDF da NFSe salvo", "path", path)
	return path, nil
}

// SnapshotPath monta o caminho {base}/{cnpj}/xml/{AAAA-MM}/{idDps}-{etapa}.xml
func (s *FileStore) SnapshotPath(taxID, dpsID string, stage Stage, at time.Time) string {
	return filepath.Join(s.baseDir, sanitize(taxID), "xml", at.Format("2006-01"),
		fmt.Sprintf("%s-%s.xml", sanitize(dpsID), stage))
}

// SaveSnapshot grava o XML da etapa informada. Retorna caminho vazio quando os snapshots estão desativados.
func (s *FileStore) SaveSnapshot(taxID, dpsID string, stage Stage, xml []byte, at time.Time) (string, error) {
	if !s.snapshots {
		return "", nil
	}
	path := s.SnapshotPath(taxID, dpsID, stage, at)
	if err := write(path, xml); err != nil {
		return "", fmt.Errorf("falha ao salvar XML %s: %w", stage, err)
	}
	return path, nil
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sanitize(s string) string {
	return strings.TrimSpace(unsafeChars.Replace(s))
}

// Read lê um arquivo gravado anteriormente pelo FileStore
func (s *FileStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler arquivo: %w", err)
	}
	return data, nil
}

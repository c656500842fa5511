package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsearch-platform/internal/config"
	"docsearch-platform/models"
	"docsearch-platform/utils"

	"github.com/google/uuid"
)

// DocumentService validates and stores uploaded files and their records.
type DocumentService struct {
	cfg       *config.Config
	store     *DocumentStore
	uploadDir string
}

func NewDocumentService(cfg *config.Config, store *DocumentStore) *DocumentService {
	uploadDir := filepath.Join(cfg.FileStorageDir, "uploads")
	os.MkdirAll(uploadDir, 0755)

	return &DocumentService{
		cfg:       cfg,
		store:     store,
		uploadDir: uploadDir,
	}
}

// UploadResult reports what happened to one upload. Duplicate is true
// when a document with identical content already exists; the existing
// record is returned in that case.
type UploadResult struct {
	Document  *models.Document
	Duplicate bool
}

// ValidateAndStore checks the upload against size and type limits, stores
// it on disk under a generated name, and creates the document record.
// Content-identical re-uploads return the existing record.
func (s *DocumentService) ValidateAndStore(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if header.Size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", header.Size, s.cfg.MaxFileSize)
	}

	contentType := header.Header.Get("Content-Type")
	if !s.allowedType(contentType, header.Filename) {
		return nil, fmt.Errorf("unsupported file type: %s", contentType)
	}

	id := uuid.NewString()
	storedName := id + strings.ToLower(filepath.Ext(header.Filename))
	storedPath := filepath.Join(s.uploadDir, storedName)

	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(storedPath)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	dst.Close()

	hash, err := utils.HashFile(storedPath)
	if err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	existing, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		os.Remove(storedPath)
		return nil, err
	}
	if existing != nil {
		os.Remove(storedPath)
		return &UploadResult{Document: existing, Duplicate: true}, nil
	}

	doc := &models.Document{
		ID:           id,
		Filename:     storedName,
		OriginalName: header.Filename,
		FilePath:     storedPath,
		FileHash:     hash,
		ContentType:  contentType,
		Status:       models.StatusPending,
		UploadedAt:   time.Now(),
	}
	if err := s.store.Create(ctx, doc); err != nil {
		os.Remove(storedPath)
		return nil, err
	}
	return &UploadResult{Document: doc}, nil
}

func (s *DocumentService) allowedType(contentType, filename string) bool {
	for _, allowed := range s.cfg.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return true
		}
	}
	// Some browsers send octet-stream for office files; fall back to the
	// extension
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".pptx", ".xlsx":
		return contentType == "application/octet-stream" || contentType == ""
	}
	return false
}

package routes

import (
	"net/http"
	"strconv"

	"docsearch-platform/internal/config"
	"docsearch-platform/internal/queue"
	"docsearch-platform/models"
	"docsearch-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// HandleDocumentUpload accepts a document, stores it and enqueues the
// ingestion pipeline. Responds 202 with the document id to poll.
func HandleDocumentUpload(cfg *config.Config, docService *services.DocumentService, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "file_too_large",
				"message":    "File size exceeds maximum limit",
			})
			return
		}

		file, header, err := c.Request.FormFile("document")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "no_file",
				"message":    "No document file provided",
			})
			return
		}
		defer file.Close()

		result, err := docService.ValidateAndStore(c.Request.Context(), file, header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "invalid_upload",
				"message":    err.Error(),
			})
			return
		}

		if result.Duplicate {
			c.JSON(http.StatusOK, gin.H{
				"message":     "Document already ingested",
				"document_id": result.Document.ID,
				"status":      result.Document.Status,
				"duplicate":   true,
			})
			return
		}

		task, err := queue.NewIngestTask(result.Document.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "queue_error",
				"message":    "Failed to create ingestion task",
			})
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "queue_error",
				"message":    "Failed to enqueue ingestion task",
			})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":     "Document accepted for ingestion",
			"document_id": result.Document.ID,
			"task_id":     info.ID,
			"status":      result.Document.Status,
			"filename":    result.Document.OriginalName,
			"uploaded_at": result.Document.UploadedAt,
		})
	}
}

// CheckIngestStatus serves ingestion progress, preferring the Redis cache
// and falling back to the document record.
func CheckIngestStatus(statusCache *services.StatusCache, documents *services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("documentID")

		if cached, err := statusCache.Get(c.Request.Context(), documentID); err == nil && cached != nil {
			c.JSON(http.StatusOK, gin.H{
				"document_id": cached.DocumentID,
				"status":      cached.Status,
				"result":      cached.Result,
				"updated_at":  cached.UpdatedAt,
			})
			return
		}

		doc, err := documents.Get(c.Request.Context(), documentID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error_code": "document_not_found",
				"message":    "Document not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": doc.ID,
			"status":      doc.Status,
			"error":       doc.ErrorMessage,
			"uploaded_at": doc.UploadedAt,
			"ingested_at": doc.IngestedAt,
		})
	}
}

// SearchDocuments runs a full-text query over the search index.
func SearchDocuments(indexStore *services.IndexStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "missing_query",
				"message":    "Query parameter q is required",
			})
			return
		}

		limit := 10
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 && l <= 100 {
			limit = l
		}

		records, err := indexStore.Search(c.Request.Context(), query, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "search_error",
				"message":    "Search failed",
			})
			return
		}
		if records == nil {
			records = []models.SearchIndexRecord{}
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"count":   len(records),
			"results": records,
		})
	}
}

// GetSearchRecord returns the full index record of one document,
// including its aggregated text and indexed images.
func GetSearchRecord(indexStore *services.IndexStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("documentID")

		record, err := indexStore.Get(c.Request.Context(), documentID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error_code": "record_not_found",
				"message":    "No search record for document",
			})
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

package handler

import (
	"context"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/ids"
	"docvault/internal/model"
	"docvault/internal/service"
)

// UserIDHeader optionally names the user acting on a document.
const UserIDHeader = "X-User-Id"

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. db may be nil when the
// service runs without a database.
func RegisterRoutes(app *fiber.App, db Pinger, docSvc service.DocumentService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	org := app.Group("/organizations/:organizationId")
	org.Post("/tagging-rules/:taggingRuleId/apply", ApplyTaggingRule(docSvc))

	docs := org.Group("/documents")
	docs.Post("/", UploadDocument(docSvc))
	docs.Get("/", ListDocuments(docSvc))
	docs.Get("/deleted", ListDeletedDocuments(docSvc))
	docs.Get("/statistics", GetOrganizationStats(docSvc))
	docs.Delete("/trash", EmptyTrash(docSvc))
	docs.Get("/:documentId", GetDocument(docSvc))
	docs.Get("/:documentId/file", DownloadDocumentFile(docSvc))
	docs.Patch("/:documentId", UpdateDocument(docSvc))
	docs.Delete("/:documentId", TrashDocument(docSvc))
	docs.Post("/:documentId/restore", RestoreDocument(docSvc))
	docs.Delete("/:documentId/permanent", HardDeleteDocument(docSvc))
}

// HealthCheck checks DB connectivity only.
func HealthCheck(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a backward-compatible simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

func userID(c *fiber.Ctx) *string {
	if v := c.Get(UserIDHeader); v != "" {
		return &v
	}
	return nil
}

// documentID reads and validates the :documentId path parameter.
func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("documentId")
	return id, ids.Valid("doc", id)
}

// pagination parses limit and offset. bad names the first malformed parameter.
func pagination(c *fiber.Ctx) (limit, offset int, bad string) {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return 0, 0, "limit"
	}
	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		return 0, 0, "offset"
	}
	return limit, offset, ""
}

// UploadDocument accepts multipart/form-data with the file under "file" and an optional
// comma separated "ocrLanguages" value.
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			ct = mt
		} else {
			ct = "application/octet-stream"
		}

		var langs []string
		for _, l := range strings.Split(c.FormValue("ocrLanguages"), ",") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}

		doc, err := svc.CreateDocument(c.UserContext(), service.CreateDocumentInput{
			Reader:         f,
			FileName:       fh.Filename,
			MimeType:       ct,
			OrganizationID: c.Params("organizationId"),
			CreatedBy:      userID(c),
			OCRLanguages:   langs,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"document": doc})
	}
}

func ListDocuments(svc service.DocumentService) fiber.Handler {
	return listHandler(svc.ListDocuments)
}

func ListDeletedDocuments(svc service.DocumentService) fiber.Handler {
	return listHandler(svc.ListDeletedDocuments)
}

func listHandler(list func(ctx context.Context, organizationID string, limit, offset int) (*service.DocumentListResult, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, bad := pagination(c)
		if bad != "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_"+strings.ToUpper(bad), "invalid "+bad)
		}
		res, err := list(c.UserContext(), c.Params("organizationId"), limit, offset)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(res)
	}
}

func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.GetDocument(c.UserContext(), c.Params("organizationId"), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"document": doc})
	}
}

// DownloadDocumentFile streams the decrypted file content.
func DownloadDocumentFile(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		file, err := svc.GetDocumentFile(c.UserContext(), c.Params("organizationId"), id)
		if err != nil {
			return fail(c, err)
		}
		c.Set(fiber.HeaderContentType, file.Document.MimeType)
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{
			"filename": file.Document.OriginalName,
		}))
		// fasthttp closes the stream once the body is written.
		return c.SendStream(file.Body)
	}
}

func UpdateDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var upd model.DocumentUpdate
		if err := c.BodyParser(&upd); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_NAME", "name must not be empty")
		}
		doc, err := svc.UpdateDocument(c.UserContext(), c.Params("organizationId"), id, upd)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"document": doc})
	}
}

func TrashDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if _, err := svc.TrashDocument(c.UserContext(), c.Params("organizationId"), id, userID(c)); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func RestoreDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.RestoreDocument(c.UserContext(), c.Params("organizationId"), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"document": doc})
	}
}

func HardDeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.HardDeleteDocument(c.UserContext(), c.Params("organizationId"), id); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func EmptyTrash(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.EmptyTrash(c.UserContext(), c.Params("organizationId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(res)
	}
}

func GetOrganizationStats(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.GetOrganizationStats(c.UserContext(), c.Params("organizationId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"organizationStats": stats})
	}
}

// ApplyTaggingRule schedules the rule against every live document of the organization.
func ApplyTaggingRule(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.ScheduleTaggingRule(c.UserContext(), c.Params("organizationId"), c.Params("taggingRuleId")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

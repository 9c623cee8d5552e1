package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/alextreichler/mayajewelry/internal/models"
	"github.com/alextreichler/mayajewelry/internal/store"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultMaxUploadBytes caps the order image.
	DefaultMaxUploadBytes = 10 << 20

	// formOverhead is allowed on top of the image for the text fields and
	// multipart framing.
	formOverhead     = 1 << 20
	multipartMemory  = 1 << 20
	imageFormField   = "image"
	errOnlyImages    = "Only image files are allowed"
	errImageTooLarge = "Image must be %dMB or smaller"
)

// OrderHandler serves the public order form submission.
type OrderHandler struct {
	Store          store.Storage
	MaxUploadBytes int64
}

func (h *OrderHandler) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (h *OrderHandler) tooLarge(w http.ResponseWriter) {
	mb := (h.maxUpload() + (1<<20 - 1)) >> 20
	writeMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(errImageTooLarge, mb))
}

// SubmitOrder accepts the order form, either multipart with an optional
// image or a JSON object without one.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var (
		in           models.OrderInput
		image        []byte
		originalName string
	)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, formOverhead)
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		// The image path is only ever set by SaveImage.
		in.ImagePath = nil
	} else {
		var ok bool
		if in, image, originalName, ok = h.parseForm(w, r); !ok {
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: verrs.Error(), Errors: verrs.Map()})
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Failed to create order", err)
		return
	}

	ctx := r.Context()
	if image != nil {
		path, err := h.Store.SaveImage(ctx, image, originalName)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "Failed to save image", err)
			return
		}
		in.ImagePath = &path
	}

	order, err := h.Store.CreateOrder(ctx, in)
	if err != nil {
		if in.ImagePath != nil {
			// The row never committed, so the file would be orphaned.
			if rmErr := h.Store.RemoveImage(ctx, *in.ImagePath); rmErr != nil {
				slog.Error("Failed to remove image of rejected order", "path", *in.ImagePath, "error", rmErr)
			}
		}
		writeError(w, r, http.StatusInternalServerError, "Failed to create order", err)
		return
	}

	ordersCreated.WithLabelValues(order.JewelryType).Inc()
	slog.Info("Order received", "id", order.ID, "jewelryType", order.JewelryType, "hasImage", order.ImagePath != nil)
	writeJSON(w, http.StatusCreated, order)
}

// parseForm reads a multipart or urlencoded order form. It writes the error
// response itself and reports false when the request is rejected.
func (h *OrderHandler) parseForm(w http.ResponseWriter, r *http.Request) (models.OrderInput, []byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload()+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			h.tooLarge(w)
			return models.OrderInput{}, nil, "", false
		case errors.Is(err, http.ErrNotMultipart):
			// plain form posts carry no image
			if err := r.ParseForm(); err != nil {
				writeMessage(w, http.StatusBadRequest, "Invalid form data")
				return models.OrderInput{}, nil, "", false
			}
		default:
			slog.Warn("Rejected malformed order form", "error", err)
			writeMessage(w, http.StatusBadRequest, "Invalid form data")
			return models.OrderInput{}, nil, "", false
		}
	}

	image, originalName, ok := h.readImage(w, r)
	if !ok {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
		return models.OrderInput{}, nil, "", false
	}
	in := models.OrderInput{
		FullName:    r.FormValue("fullName"),
		Email:       r.FormValue("email"),
		Phone:       r.FormValue("phone"),
		JewelryType: r.FormValue("jewelryType"),
		Description: r.FormValue("description"),
	}
	return in, image, originalName, true
}

// readImage returns the uploaded image, or nil when none was sent. It writes
// the error response itself and reports false when the upload is rejected.
func (h *OrderHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if r.MultipartForm == nil {
		return nil, "", true
	}
	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", true
	}
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return nil, "", false
	}
	defer file.Close()

	if header.Size > h.maxUpload() {
		h.tooLarge(w)
		return nil, "", false
	}
	data, err := readAllLimited(file, h.maxUpload())
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			h.tooLarge(w)
		} else {
			writeError(w, r, http.StatusInternalServerError, "Failed to save image", err)
		}
		return nil, "", false
	}
	if len(data) == 0 {
		// browsers send an empty part when no file was picked
		return nil, "", true
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") || mt.Is("image/svg+xml") {
		slog.Info("Rejected non-image upload", "detected", mt.String(), "declared", header.Header.Get("Content-Type"))
		writeMessage(w, http.StatusBadRequest, errOnlyImages)
		return nil, "", false
	}
	return data, header.Filename, true
}

var errFileTooLarge = errors.New("file too large")

func readAllLimited(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}

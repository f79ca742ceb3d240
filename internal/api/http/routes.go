package apihttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"videostream/internal/domain"
	"videostream/internal/metrics"
	"videostream/internal/usecase"
)

const mediaPrefix = "/api/media/"

type mediaItem struct {
	ID   domain.MediaID `json:"id"`
	Path string         `json:"path"`
	Mime string         `json:"mime"`
}

type mediaListResponse struct {
	Media []mediaItem `json:"media"`
}

type scanResponse struct {
	Scanned int `json:"scanned"`
}

// route dispatches on the raw request target. Only the media id has its
// query string removed; the list and scan routes match exactly.
func (s *Server) route(ctx context.Context, sess *session, req *http.Request) (*response, string) {
	if req.Method != http.MethodGet {
		return textResponse(http.StatusNotFound, "Endpoint not found."), "/other"
	}

	target := req.RequestURI
	switch {
	case target == "/api/media":
		return s.handleListMedia(ctx), "/api/media"
	case strings.HasPrefix(target, mediaPrefix):
		id := strings.TrimPrefix(target, mediaPrefix)
		if i := strings.IndexByte(id, '?'); i >= 0 {
			id = id[:i]
		}
		return s.handleGetMedia(ctx, sess, req, domain.MediaID(id)), "/api/media/:id"
	case target == "/api/scan":
		return s.handleScan(ctx), "/api/scan"
	}
	return textResponse(http.StatusNotFound, "Endpoint not found."), "/other"
}

func (s *Server) handleListMedia(ctx context.Context) *response {
	records, err := s.media.ListMedia(ctx)
	if err != nil {
		return s.serviceError(err)
	}
	out := mediaListResponse{Media: make([]mediaItem, 0, len(records))}
	for _, r := range records {
		out.Media = append(out.Media, mediaItem{ID: r.ID, Path: r.Path, Mime: r.MimeType})
	}
	return jsonResponse(http.StatusOK, out)
}

func (s *Server) handleScan(ctx context.Context) *response {
	count, err := s.media.Rescan(ctx)
	if err != nil {
		return s.serviceError(err)
	}
	return jsonResponse(http.StatusOK, scanResponse{Scanned: count})
}

func (s *Server) handleGetMedia(ctx context.Context, sess *session, req *http.Request, id domain.MediaID) *response {
	content, err := s.media.OpenMedia(ctx, id)
	if err != nil {
		if errors.Is(err, usecase.ErrFileAccess) {
			s.logger.Error("media open failed",
				slog.String("sessionId", sess.id),
				slog.String("id", string(id)),
				slog.String("error", err.Error()),
			)
		}
		return s.serviceError(err)
	}

	size := content.Size
	rangeHeader, hasRange := req.Header["Range"]
	if !hasRange {
		resp := mediaResponse(http.StatusOK, content)
		resp.body = io.NewSectionReader(content.File, 0, size)
		resp.length = size
		return resp
	}

	value := ""
	if len(rangeHeader) > 0 {
		value = rangeHeader[0]
	}
	br, err := s.media.ResolveRange(value, size)
	if err != nil {
		content.File.Close()
		metrics.RangeRequestsTotal.WithLabelValues("rejected").Inc()
		resp := textResponse(http.StatusRequestedRangeNotSatisfiable, "Invalid Range")
		resp.header.Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		return resp
	}

	metrics.RangeRequestsTotal.WithLabelValues("partial").Inc()
	resp := mediaResponse(http.StatusPartialContent, content)
	resp.header.Set("Content-Range", br.ContentRange())
	resp.body = io.NewSectionReader(content.File, br.Start, br.Length())
	resp.length = br.Length()
	return resp
}

func mediaResponse(status int, content usecase.MediaContent) *response {
	resp := newResponse(status)
	resp.header.Set("Content-Type", content.Record.MimeType)
	resp.header.Set("Accept-Ranges", "bytes")
	resp.closer = content.File
	return resp
}

// serviceError maps service failures to responses.
func (s *Server) serviceError(err error) *response {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return textResponse(http.StatusNotFound, "Media not found.")
	case errors.Is(err, usecase.ErrFileAccess):
		return textResponse(http.StatusInternalServerError, "File access error")
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrRangeNotSatisfiable):
		return textResponse(http.StatusRequestedRangeNotSatisfiable, "Invalid Range")
	default:
		s.logger.Error("media service failed", slog.String("error", err.Error()))
		return textResponse(http.StatusInternalServerError, "Internal Server Error")
	}
}

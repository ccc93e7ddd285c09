package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bierserv/api/internal/document"
	"github.com/bierserv/api/internal/settings"
)

// SettingsReader returns the current system settings.
// Satisfied by *settings.Provider.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

const (
	formatHTML = "html"
	formatPDF  = "pdf"
)

func businessFrom(s settings.Settings) document.Business {
	return document.Business{
		Name:        s.BusinessName,
		Subtitle:    s.Subtitle,
		ContactInfo: s.ContactInfo,
		LogoURL:     s.LogoURL,
	}
}

// loadSettings falls back to the defaults when settings cannot be read, so a
// Redis or DB hiccup never blocks printing.
func loadSettings(ctx context.Context, reader SettingsReader) settings.Settings {
	if reader == nil {
		return settings.Defaults()
	}
	s, err := reader.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("settings unavailable, using defaults")
		return settings.Defaults()
	}
	return s
}

// documentFormat reads ?format=, defaulting to html.
func documentFormat(r *http.Request) (string, bool) {
	switch f := r.URL.Query().Get("format"); f {
	case "", formatHTML:
		return formatHTML, true
	case formatPDF:
		return formatPDF, true
	default:
		return f, false
	}
}

// writeDocument sends html as is, or printed to PDF when format is pdf.
func writeDocument(w http.ResponseWriter, r *http.Request, pdf document.PDFRenderer, format, filename string, html []byte) {
	if format != formatPDF {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(html) //nolint:errcheck
		return
	}

	if pdf == nil {
		writeError(w, http.StatusServiceUnavailable, "pdf generation unavailable")
		return
	}
	out, err := pdf.Render(r.Context(), html)
	if err != nil {
		if errors.Is(err, document.ErrPDFUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "pdf generation unavailable")
			return
		}
		internalError(w, r, err, "render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(out) //nolint:errcheck
}

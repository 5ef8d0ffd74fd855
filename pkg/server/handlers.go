package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/framestamp/pkg/buildinfo"
	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/inspect"
	"github.com/matzehuels/framestamp/pkg/template"
)

const (
	defaultWidth  = 1920
	defaultHeight = 1080
	maxSide       = 8192
	checkerCell   = 64
)

// Request is the body of the POST endpoints.
type Request struct {
	// Template is an inline template file (a template object or a
	// {"templates": [...]} list).
	Template json.RawMessage `json:"template,omitempty"`
	// TemplateFile names a file in the server's template directory.
	TemplateFile string `json:"template_file,omitempty"`
	// Name selects a template from a multi-template file.
	Name string `json:"name,omitempty"`
	// Source is the frame as base64 or a data URI. Without a source a
	// checkerboard of Width x Height is used.
	Source  string         `json:"source,omitempty"`
	Width   int            `json:"width,omitempty"`
	Height  int            `json:"height,omitempty"`
	Vars    map[string]any `json:"vars,omitempty"`
	Format  string         `json:"format,omitempty"`
	Quality int            `json:"quality,omitempty"`
}

// Issue is one entry of a validate response.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ValidateResponse is the body returned by /v1/validate.
type ValidateResponse struct {
	Template string  `json:"template"`
	Valid    bool    `json:"valid"`
	Issues   []Issue `json:"issues"`
}

// TemplateInfo is one entry of /v1/templates.
type TemplateInfo struct {
	File  string   `json:"file"`
	Names []string `json:"names"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if s.opts.TemplateDir == "" {
		writeJSON(w, http.StatusOK, []TemplateInfo{})
		return
	}
	entries, err := os.ReadDir(s.opts.TemplateDir)
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrCodeInternal, err, "list templates"))
		return
	}
	infos := []TemplateInfo{}
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		f, err := template.Load(filepath.Join(s.opts.TemplateDir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping template", "file", e.Name(), "err", errs.UserMessage(err))
			continue
		}
		infos = append(infos, TemplateInfo{File: e.Name(), Names: f.Names()})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, tpl, src, err := s.decode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := imageio.PNG
	if req.Format != "" {
		if format, err = imageio.ParseFormat(req.Format); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	res, err := s.scene.RenderContext(r.Context(), RequestID(r.Context()), src, tpl, req.Vars)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, warn := range res.Warnings {
		s.logger.Warn(warn, "id", RequestID(r.Context()), "template", tpl.Name)
	}

	var buf bytes.Buffer
	if err := imageio.Encode(&buf, res.Image, format, req.Quality); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/"+string(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	req, tpl, src, err := s.decode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := inspect.Build(s.scene, src, tpl, req.Vars)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tpl, err := s.template(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := ValidateResponse{Template: tpl.Name, Issues: []Issue{}}
	for _, is := range template.Validate(tpl, s.scene.Registry()) {
		resp.Issues = append(resp.Issues, Issue{
			Path:    is.Path,
			Code:    string(errs.RootCode(is.Err)),
			Message: errs.UserMessage(is.Err),
		})
	}
	resp.Valid = len(resp.Issues) == 0
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a render-style request: body, template and source frame.
func (s *Server) decode(r *http.Request) (*Request, *template.Template, image.Image, error) {
	var req Request
	if err := readJSON(r, &req); err != nil {
		return nil, nil, nil, err
	}
	tpl, err := s.template(req)
	if err != nil {
		return nil, nil, nil, err
	}
	src, err := source(req)
	if err != nil {
		return nil, nil, nil, err
	}
	return &req, tpl, src, nil
}

func (s *Server) template(req Request) (*template.Template, error) {
	var (
		f   *template.File
		err error
	)
	switch {
	case len(req.Template) > 0 && req.TemplateFile != "":
		return nil, errs.New(errs.ErrCodeInvalidInput, "set either template or template_file, not both")
	case len(req.Template) > 0:
		f, err = template.Parse(req.Template, template.FormatJSON)
	case req.TemplateFile != "":
		if s.opts.TemplateDir == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "this server has no template directory")
		}
		if err := errs.ValidatePath(req.TemplateFile); err != nil {
			return nil, err
		}
		if !isTemplateFile(req.TemplateFile) {
			return nil, errs.New(errs.ErrCodeInvalidPath, "%s is not a template file", req.TemplateFile)
		}
		f, err = template.Load(filepath.Join(s.opts.TemplateDir, filepath.FromSlash(req.TemplateFile)))
		if errs.Is(err, errs.ErrCodeFileNotFound) {
			return nil, errs.New(errs.ErrCodeTemplateNotFound, "template file %s not found", req.TemplateFile)
		}
	default:
		return nil, errs.New(errs.ErrCodeInvalidInput, "template or template_file is required")
	}
	if err != nil {
		return nil, err
	}
	return f.Select(req.Name)
}

func source(req Request) (image.Image, error) {
	if req.Source == "" {
		w, h := req.Width, req.Height
		if w == 0 {
			w = defaultWidth
		}
		if h == 0 {
			h = defaultHeight
		}
		if w < 0 || h < 0 || w > maxSide || h > maxSide {
			return nil, errs.New(errs.ErrCodeInvalidInput, "frame size %dx%d out of range", w, h)
		}
		return imageio.Checker(w, h, checkerCell), nil
	}
	payload := req.Source
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, errs.New(errs.ErrCodeInvalidInput, "source data URI must be base64 encoded")
		}
		payload = data
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "source is not base64")
	}
	return imageio.DecodeBytes(data)
}

var templateExts = []string{".json", ".jsonc", ".toml"}

func isTemplateFile(name string) bool {
	return slices.Contains(templateExts, strings.ToLower(filepath.Ext(name)))
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "decode request")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "id", RequestID(r.Context()), "err", err)
	}
	writeJSON(w, status, map[string]string{
		"code":       string(code),
		"error":      errs.UserMessage(err),
		"request_id": RequestID(r.Context()),
	})
}

// statusFor maps an error to an HTTP status using the innermost code.
func statusFor(err error) (int, errs.Code) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, errs.ErrCodeInvalidInput
	}
	code := errs.RootCode(err)
	switch code {
	case errs.ErrCodeInvalidInput, errs.ErrCodeInvalidPath, errs.ErrCodeInvalidTemplate, errs.ErrCodeInvalidFormat:
		return http.StatusBadRequest, code
	case errs.ErrCodeNotFound, errs.ErrCodeFileNotFound, errs.ErrCodeTemplateNotFound:
		return http.StatusNotFound, code
	case errs.ErrCodePreset, errs.ErrCodeParameterNotFound, errs.ErrCodeRecursion,
		errs.ErrCodeUnresolvedReference, errs.ErrCodeInvalidParameterType,
		errs.ErrCodeConfiguration, errs.ErrCodeShapeTypeNotFound, errs.ErrCodeInvalidExpression:
		return http.StatusUnprocessableEntity, code
	case "":
		return http.StatusInternalServerError, errs.ErrCodeInternal
	default:
		return http.StatusInternalServerError, code
	}
}

package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/haivivi/vocalis/pkg/audio/ingest"
	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/classify"
	"github.com/haivivi/vocalis/pkg/detect"
	"github.com/haivivi/vocalis/pkg/models"
	"github.com/haivivi/vocalis/pkg/results"
	"github.com/haivivi/vocalis/pkg/voiceprint"
)

// audioResult pairs an uploaded file with its label.
type audioResult struct {
	Filename   string         `json:"filename"`
	Prediction classify.Label `json:"prediction"`
}

// processResponse is the /process_audio body. Predictions and Audios are
// parallel lists over the successful files.
type processResponse struct {
	Message       string              `json:"message"`
	RequestID     string              `json:"request_id"`
	Predictions   []classify.Label    `json:"predictions"`
	Audios        []audioResult       `json:"audios"`
	FeaturesShape []int               `json:"features_shape"`
	Results       []detect.Prediction `json:"results"`
	Failures      []detect.Failure    `json:"failures,omitempty"`
}

func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	files, err := s.parseFiles(w, r, "audio_files")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	inputs := make([]detect.Input, len(files))
	for i, f := range files {
		inputs[i] = detect.Input{Name: f.name, Data: f.data}
	}
	resp, err := s.deps.Pipeline.Detect(r.Context(), inputs)
	switch {
	case errors.Is(err, detect.ErrAllFailed):
		writeJSON(w, http.StatusUnprocessableEntity, processResponse{
			Message:   "no file could be processed",
			RequestID: resp.RequestID,
			Failures:  resp.Failures,
		})
		return
	case errors.Is(err, models.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := processResponse{
		Message:       fmt.Sprintf("processed %d of %d files", len(resp.Predictions), len(files)),
		RequestID:     resp.RequestID,
		Predictions:   resp.Labels(),
		FeaturesShape: resp.FeaturesShape,
		Results:       resp.Predictions,
		Failures:      resp.Failures,
	}
	for _, p := range resp.Predictions {
		out.Audios = append(out.Audios, audioResult{Filename: p.Filename, Prediction: p.Label})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Results.List(r.Context())
	if errors.Is(err, results.ErrEmpty) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No results found"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	files, err := s.parseFiles(w, r, "audio_files")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user := r.FormValue("username")

	bufs := make([]*wave.Buffer, 0, len(files))
	for _, f := range files {
		b, err := s.deps.Speaker.LoadReader(r.Context(), f.name, bytesReader(f.data))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(ingestKind(err))})
			return
		}
		bufs = append(bufs, b)
	}

	vp, err := s.deps.Enroller.Enroll(r.Context(), user, bufs)
	switch {
	case errors.Is(err, voiceprint.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, voiceprint.ErrInsufficientEnrollmentData):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: "InsufficientEnrollmentData"})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"message":    "enrolled",
			"user":       vp.User,
			"recordings": vp.Recordings,
			"frames":     vp.Frames,
		})
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	files, err := s.parseFiles(w, r, "audio_file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("%v: %v", voiceprint.ErrMissingTestAudio, err),
			Kind:  "MissingTestAudio",
		})
		return
	}
	user := r.FormValue("username")

	buf, err := s.deps.Speaker.LoadReader(r.Context(), files[0].name, bytesReader(files[0].data))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("%v: %v", voiceprint.ErrMissingTestAudio, err),
			Kind:  "MissingTestAudio",
		})
		return
	}

	res, err := s.deps.Verifier.Verify(r.Context(), user, buf)
	switch {
	case errors.Is(err, voiceprint.ErrNoEnrolledUsers):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Kind: "NoEnrolledUsers"})
	case errors.Is(err, voiceprint.ErrMissingTestAudio):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "MissingTestAudio"})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Enroller.Users(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ok, err := s.deps.Enroller.Exists(r.Context(), name)
	switch {
	case errors.Is(err, voiceprint.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]any{"user": name, "enrolled": false})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"user": name, "enrolled": true})
	}
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Enroller.Delete(r.Context(), r.PathValue("name"))
	switch {
	case errors.Is(err, voiceprint.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type upload struct {
	name string
	data []byte
}

// parseFiles reads every part of field from a multipart form.
func (s *Server) parseFiles(w http.ResponseWriter, r *http.Request, field string) ([]upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, fmt.Errorf("no files in field %q", field)
	}
	out := make([]upload, 0, len(headers))
	for _, h := range headers {
		data, err := readPart(h)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", h.Filename, err)
		}
		out = append(out, upload{name: h.Filename, data: data})
	}
	return out, nil
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func ingestKind(err error) detect.Kind {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return detect.UnsupportedFormat
	case errors.Is(err, ingest.ErrSilentAudio):
		return detect.SilentAudio
	default:
		return detect.UnreadableAudio
	}
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

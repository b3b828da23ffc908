package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exteriorai/exteriorai-backend/internal/generation"
	"github.com/exteriorai/exteriorai-backend/internal/imagehost"
	"github.com/exteriorai/exteriorai-backend/internal/objectstore"
	"github.com/exteriorai/exteriorai-backend/internal/pipeline"
	"github.com/exteriorai/exteriorai-backend/internal/transcription"
)

type stubTranscriber struct {
	res    *transcription.Result
	err    error
	called atomic.Int32
	got    []byte
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte, contentType string) (*transcription.Result, error) {
	s.called.Add(1)
	s.got = audio
	return s.res, s.err
}

type stubUploader struct {
	err       error
	gotFolder string
}

func (s *stubUploader) Upload(ctx context.Context, dataURI, folder string) (*objectstore.Result, error) {
	s.gotFolder = folder
	if s.err != nil {
		return nil, s.err
	}
	return &objectstore.Result{URL: "https://res.cloudinary.com/demo/img.png", PublicID: folder + "/1700000000_abc123"}, nil
}

type upstreams struct {
	gemini      *httptest.Server
	imgbb       *httptest.Server
	geminiCalls atomic.Int32
	geminiReply string
	geminiCode  int
	imgbbCode   int
}

func newUpstreams(t *testing.T) *upstreams {
	t.Helper()
	u := &upstreams{
		geminiCode: http.StatusOK,
		geminiReply: `{"candidates":[{"content":{"parts":[
			{"text":"Here's your fire pit"},
			{"inlineData":{"mimeType":"image/png","data":"` + strings.Repeat("A", 400) + `"}}]}}]}`,
		imgbbCode: http.StatusOK,
	}
	u.gemini = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.geminiCalls.Add(1)
		w.WriteHeader(u.geminiCode)
		_, _ = w.Write([]byte(u.geminiReply))
	}))
	u.imgbb = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(u.imgbbCode)
		_, _ = w.Write([]byte(`{"success":true,"data":{"url":"https://i.ibb.co/x/full.png","display_url":"https://i.ibb.co/x/display.png","delete_url":"https://ibb.co/x/del"}}`))
	}))
	t.Cleanup(u.gemini.Close)
	t.Cleanup(u.imgbb.Close)
	return u
}

func setupRouter(t *testing.T) (*gin.Engine, *upstreams, *stubTranscriber, *stubUploader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	u := newUpstreams(t)
	p := pipeline.New(
		generation.NewClient(generation.Config{APIKey: "g-key", BaseURL: u.gemini.URL}),
		imagehost.NewImgBB(imagehost.Config{APIKey: "bb-key", BaseURL: u.imgbb.URL}),
	)
	tr := &stubTranscriber{res: &transcription.Result{Text: "add a fire pit"}}
	up := &stubUploader{}

	r := gin.New()
	New(p, tr, up).Register(r.Group("/api"))
	return r, u, tr, up
}

func postJSON(r *gin.Engine, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestGenerateImage_FirePitScenario(t *testing.T) {
	r, u, _, _ := setupRouter(t)

	w, body := postJSON(r, "/api/generate-image", gin.H{"prompt": "add a fire pit"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Here's your fire pit", body["responseText"])
	assert.Equal(t, "https://i.ibb.co/x/full.png", body["imageUrl"])
	assert.Equal(t, "https://i.ibb.co/x/display.png", body["displayUrl"])
	assert.Equal(t, "https://ibb.co/x/del", body["deleteUrl"])
	assert.Equal(t, int32(1), u.geminiCalls.Load())
}

func TestGenerateImage_MissingPromptMakesNoCalls(t *testing.T) {
	r, u, _, _ := setupRouter(t)

	for _, body := range []any{gin.H{}, gin.H{"prompt": "   "}, "not an object"} {
		w, out := postJSON(r, "/api/generate-image", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No prompt provided", out["error"])
	}
	assert.Equal(t, int32(0), u.geminiCalls.Load())
}

func TestGenerateImage_HostFailureIsDegradedSuccess(t *testing.T) {
	r, u, _, _ := setupRouter(t)
	u.imgbbCode = http.StatusInternalServerError

	w, body := postJSON(r, "/api/generate-image", gin.H{"prompt": "add a fire pit"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["fullImageTooLarge"])
	assert.Equal(t, imagehost.DegradedWarning, body["error"])

	preview := body["imageUrl"].(string)
	payload := preview[strings.Index(preview, ",")+1:]
	assert.Equal(t, strings.Repeat("A", imagehost.PreviewChars)+"...", payload)
}

func TestGenerateImage_UpstreamErrors(t *testing.T) {
	r, u, _, _ := setupRouter(t)

	u.geminiReply = `{"candidates":[{"content":{"parts":[{"text":"I can't draw that"}]}}]}`
	w, body := postJSON(r, "/api/generate-image", gin.H{"prompt": "add a fire pit"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No image was generated", body["error"])

	u.geminiCode = http.StatusForbidden
	u.geminiReply = `{"error":{"message":"API key not valid"}}`
	w, body = postJSON(r, "/api/generate-image", gin.H{"prompt": "add a fire pit"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Failed to generate image", body["error"])
	assert.Contains(t, body["details"], "API key not valid")

	u.geminiCode = http.StatusOK
	u.geminiReply = `<html>`
	w, body = postJSON(r, "/api/generate-image", gin.H{"prompt": "add a fire pit"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Malformed response from generation service", body["error"])
}

func audioRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="recording.webm"`)
	h.Set("Content-Type", "audio/webm")
	fw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestTranscribe(t *testing.T) {
	r, _, tr, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, audioRequest(t, "audio", []byte("webm-bytes")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"transcript":"add a fire pit"}`, w.Body.String())
	assert.Equal(t, []byte("webm-bytes"), tr.got)
}

func TestTranscribe_NoAudioMakesNoCall(t *testing.T) {
	r, _, tr, _ := setupRouter(t)

	for _, req := range []*http.Request{
		audioRequest(t, "other", []byte("x")),
		audioRequest(t, "audio", nil),
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"No audio file provided"}`, w.Body.String())
	}
	assert.Equal(t, int32(0), tr.called.Load())
}

func TestTranscribe_Errors(t *testing.T) {
	r, _, tr, _ := setupRouter(t)

	tr.err = &transcription.ServiceError{StatusCode: http.StatusUnauthorized, Details: `{"detail":"invalid api key"}`}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, audioRequest(t, "audio", []byte("x")))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Failed to transcribe audio","details":"{\"detail\":\"invalid api key\"}"}`, w.Body.String())

	tr.err = errors.New("connection reset")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, audioRequest(t, "audio", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to process transcription request")
}

func TestUpload(t *testing.T) {
	r, _, _, up := setupRouter(t)

	w, body := postJSON(r, "/api/upload", gin.H{"folder": "projects"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No image data provided", body["error"])

	w, body = postJSON(r, "/api/upload", gin.H{"imageData": "data:image/png;base64,QUJD"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://res.cloudinary.com/demo/img.png", body["url"])
	assert.Equal(t, "projects/1700000000_abc123", body["public_id"])
	assert.Equal(t, DefaultUploadFolder, up.gotFolder)

	up.err = objectstore.ErrNotAnImage
	w, _ = postJSON(r, "/api/upload", gin.H{"imageData": "data:text/plain;base64,QUJD"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	up.err = errors.New("cloudinary: 500")
	w, body = postJSON(r, "/api/upload", gin.H{"imageData": "data:image/png;base64,QUJD", "folder": "users/u1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to upload image", body["error"])
	assert.Equal(t, "users/u1", up.gotFolder)
}

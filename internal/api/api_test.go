package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"

	"github.com/starford/casevault/internal/caseservice"
	"github.com/starford/casevault/internal/models"
	"github.com/starford/casevault/internal/snapshot"
	"github.com/starford/casevault/internal/testutil"
)

// stubTransformer returns canned text, or a fixed error.
type stubTransformer struct {
	err error
}

func (s *stubTransformer) TranscribeAudio(context.Context, string) (string, error) {
	return "Session transcript", s.err
}

func (s *stubTransformer) ExtractText(context.Context, string) (string, error) {
	return "Extracted document text", s.err
}

func (s *stubTransformer) CleanText(context.Context, string) (string, error) {
	return "Cleaned note text", s.err
}

// testEnv sets up a temp archive, SQLite DB, service, and router.
// authToken != "" enables token mode.
func testEnv(t *testing.T, authToken string) (*caseservice.Service, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	_, area := testutil.TestArea(t)
	engine := snapshot.NewEngine(area, nil)
	svc := caseservice.NewService(db, area, engine, &stubTransformer{}, nil)
	router := NewRouter(svc, authToken != "", authToken, nil)
	return svc, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSubject(t *testing.T, router http.Handler, name string) SubjectResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/subjects", map[string]string{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create subject status = %d, body = %s", w.Code, w.Body.String())
	}
	var s SubjectResponse
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	return s
}

func uploadArtifact(t *testing.T, router http.Handler, subjectID int64, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, _ := mw.CreatePart(h)
	_, _ = part.Write(data)
	_ = mw.WriteField("annotation", "via test")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, subjectsPath(subjectID)+"/artifacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func subjectsPath(id int64) string {
	return "/subjects/" + strconv.FormatInt(id, 10)
}

func TestSubjectCRUD(t *testing.T) {
	_, router := testEnv(t, "")

	s := createSubject(t, router, "Jane Roe")
	if s.ID == 0 || s.Name != "Jane Roe" {
		t.Fatalf("subject = %+v", s)
	}

	w := doJSON(t, router, http.MethodGet, subjectsPath(s.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, subjectsPath(s.ID), map[string]string{"name": "Jane Doe"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var updated SubjectResponse
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Name != "Jane Doe" {
		t.Errorf("name = %q", updated.Name)
	}

	w = doJSON(t, router, http.MethodGet, "/subjects", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list SubjectListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("total = %d", list.Total)
	}

	w = doJSON(t, router, http.MethodDelete, subjectsPath(s.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, subjectsPath(s.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestCreateSubjectValidation(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodPost, "/subjects", map[string]string{"name": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/subjects", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", w.Code)
	}
}

func TestUpdateSubjectRejectsUnknownFields(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "Strict")
	w := doJSON(t, router, http.MethodPut, subjectsPath(s.ID),
		map[string]string{"name": "Strict", "shoe_size": "44"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown field", w.Code)
	}
}

func TestCreateSubjectDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createSubject(t, router, "Dup")
	w := doJSON(t, router, http.MethodPost, "/subjects", map[string]string{"name": "Dup"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestUploadAndListArtifacts(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "Files")

	w := uploadArtifact(t, router, s.ID, "note.txt", "text/plain", []byte("raw note"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var a ArtifactResponse
	_ = json.Unmarshal(w.Body.Bytes(), &a)
	if a.Kind != models.KindText || a.Status != models.StatusPending {
		t.Errorf("artifact = %+v", a)
	}
	if a.Annotation != "via test" {
		t.Errorf("annotation = %q", a.Annotation)
	}

	w = doJSON(t, router, http.MethodGet, subjectsPath(s.ID)+"/artifacts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list ArtifactListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Artifacts[0].Filename != "note.txt" {
		t.Errorf("list = %+v", list)
	}
}

func TestUploadKindFromFilenameFallback(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "Fallback")

	w := uploadArtifact(t, router, s.ID, "scan.pdf", "application/octet-stream", []byte("%PDF-1.4"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var a ArtifactResponse
	_ = json.Unmarshal(w.Body.Bytes(), &a)
	if a.Kind != models.KindImage {
		t.Errorf("kind = %s, want image via extension fallback", a.Kind)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "Reject")

	w := uploadArtifact(t, router, s.ID, "prog.exe", "application/x-msdownload", []byte{0x4D, 0x5A})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "Empty")

	w := uploadArtifact(t, router, s.ID, "empty.txt", "text/plain", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "Snap")
	uploadArtifact(t, router, s.ID, "note.txt", "text/plain", []byte("x"))

	w := doJSON(t, router, http.MethodGet, subjectsPath(s.ID)+"/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get snapshot = %d", w.Code)
	}
	var d SnapshotResponse
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.SubjectName != "Snap" || len(d.Files) != 1 {
		t.Errorf("descriptor = %+v", d)
	}

	w = doJSON(t, router, http.MethodDelete, subjectsPath(s.ID)+"/snapshot", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete snapshot = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, subjectsPath(s.ID)+"/snapshot/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild snapshot = %d", w.Code)
	}
}

func TestProcessEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "Proc")

	w := uploadArtifact(t, router, s.ID, "note.txt", "text/plain", []byte("raw"))
	var a ArtifactResponse
	_ = json.Unmarshal(w.Body.Bytes(), &a)

	w = doJSON(t, router, http.MethodPost, subjectsPath(s.ID)+"/process/"+strconv.FormatInt(a.ID, 10), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d, body = %s", w.Code, w.Body.String())
	}
	var done ArtifactResponse
	_ = json.Unmarshal(w.Body.Bytes(), &done)
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %s", done.Status)
	}
	if done.ExtractedText == nil || *done.ExtractedText != "Cleaned note text" {
		t.Errorf("extracted_text = %v", done.ExtractedText)
	}

	// Processing status view reflects the result.
	w = doJSON(t, router, http.MethodGet, subjectsPath(s.ID)+"/processing-status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("processing-status = %d", w.Code)
	}
	var ps ProcessingStatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &ps)
	if len(ps.Files) != 1 || ps.Files[0].Status != models.StatusCompleted {
		t.Errorf("processing status = %+v", ps)
	}
}

func TestProcessMissingArtifact(t *testing.T) {
	_, router := testEnv(t, "")
	s := createSubject(t, router, "NoArt")
	w := doJSON(t, router, http.MethodPost, subjectsPath(s.ID)+"/process/42", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestInvalidIDParam(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/subjects/zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthTokenMode(t *testing.T) {
	_, router := testEnv(t, "secret")

	// Missing token.
	req := httptest.NewRequest(http.MethodGet, "/subjects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	// Wrong token.
	req = httptest.NewRequest(http.MethodGet, "/subjects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	// Correct token.
	req = httptest.NewRequest(http.MethodGet, "/subjects", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}

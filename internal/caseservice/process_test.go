package caseservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/casevault/internal/apperr"
	"github.com/starford/casevault/internal/models"
	"github.com/starford/casevault/internal/snapshot"
	"github.com/starford/casevault/internal/storage"
	"github.com/starford/casevault/internal/testutil"
)

func processEnv(t *testing.T, tr *stubTransformer) (*Service, storage.Provider) {
	t.Helper()
	db := testutil.TestDB(t)
	_, area := testutil.TestArea(t)
	engine := snapshot.NewEngine(area, nil)
	return NewService(db, area, engine, tr, nil), area
}

func TestProcessTextArtifact(t *testing.T) {
	stub := &stubTransformer{}
	svc, area := processEnv(t, stub)
	ctx := context.Background()

	subject, _ := svc.CreateSubject(ctx, "Jane Roe", "")
	a, _ := svc.UploadArtifact(ctx, subject.ID, "note.txt", models.KindText, "", []byte("raw"))

	done, err := svc.Process(ctx, subject.ID, a.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %s", done.Status)
	}
	if done.ExtractedText == nil || *done.ExtractedText != "Cleaned note text" {
		t.Errorf("extracted_text = %v", done.ExtractedText)
	}
	if done.ProcessedAt == nil {
		t.Error("processed_at not set")
	}
	if done.ErrorDetail != nil {
		t.Errorf("error_detail = %v", done.ErrorDetail)
	}
	if stub.calls != 1 {
		t.Errorf("transformer calls = %d", stub.calls)
	}

	// Snapshot reflects the terminal status.
	d := readDescriptor(t, area, "Jane Roe")
	if d.Files[0].Status != models.StatusCompleted {
		t.Errorf("descriptor status = %s", d.Files[0].Status)
	}
}

func TestProcessDispatchesByKind(t *testing.T) {
	stub := &stubTransformer{}
	svc, _ := processEnv(t, stub)
	ctx := context.Background()
	subject, _ := svc.CreateSubject(ctx, "Kinds", "")

	cases := []struct {
		filename string
		kind     models.Kind
		want     string
	}{
		{"session.mp3", models.KindAudio, "Session transcript"},
		{"scan.png", models.KindImage, "Extracted document text"},
		{"note.txt", models.KindText, "Cleaned note text"},
	}
	for _, tc := range cases {
		a, err := svc.UploadArtifact(ctx, subject.ID, tc.filename, tc.kind, "", []byte("data"))
		if err != nil {
			t.Fatalf("upload %s: %v", tc.filename, err)
		}
		done, err := svc.Process(ctx, subject.ID, a.ID)
		if err != nil {
			t.Fatalf("process %s: %v", tc.filename, err)
		}
		if *done.ExtractedText != tc.want {
			t.Errorf("%s text = %q, want %q", tc.filename, *done.ExtractedText, tc.want)
		}
	}
}

func TestProcessMissingArtifactRow(t *testing.T) {
	svc, _ := processEnv(t, &stubTransformer{})
	ctx := context.Background()
	subject, _ := svc.CreateSubject(ctx, "Empty", "")

	if _, err := svc.Process(ctx, subject.ID, 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProcessMissingFileOnDisk(t *testing.T) {
	stub := &stubTransformer{}
	svc, area := processEnv(t, stub)
	ctx := context.Background()

	subject, _ := svc.CreateSubject(ctx, "Lost", "")
	a, _ := svc.UploadArtifact(ctx, subject.ID, "gone.txt", models.KindText, "", []byte("x"))
	if err := area.Delete(a.RelPath); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Process(ctx, subject.ID, a.ID)
	if !errors.Is(err, apperr.ErrArtifactMissing) {
		t.Fatalf("err = %v, want ErrArtifactMissing", err)
	}
	if stub.calls != 0 {
		t.Errorf("transformer should not be called, calls = %d", stub.calls)
	}

	got, _ := svc.GetArtifact(ctx, subject.ID, a.ID)
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if got.ErrorDetail == nil {
		t.Fatal("error_detail not recorded")
	}
	if !strings.Contains(*got.ErrorDetail, "file not found on disk") {
		t.Errorf("detail = %q", *got.ErrorDetail)
	}
	if !strings.Contains(*got.ErrorDetail, "gone.txt") {
		t.Errorf("detail should name the path, got %q", *got.ErrorDetail)
	}
}

func TestProcessTransformFailure(t *testing.T) {
	stub := &stubTransformer{err: errors.New("model unavailable")}
	svc, _ := processEnv(t, stub)
	ctx := context.Background()

	subject, _ := svc.CreateSubject(ctx, "Flaky", "")
	a, _ := svc.UploadArtifact(ctx, subject.ID, "note.txt", models.KindText, "", []byte("x"))

	_, err := svc.Process(ctx, subject.ID, a.ID)
	if !errors.Is(err, apperr.ErrTransformFailed) {
		t.Fatalf("err = %v, want ErrTransformFailed", err)
	}

	got, _ := svc.GetArtifact(ctx, subject.ID, a.ID)
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if got.ErrorDetail == nil || !strings.Contains(*got.ErrorDetail, "model unavailable") {
		t.Errorf("detail = %v, want cause kept verbatim", got.ErrorDetail)
	}
	if got.ExtractedText != nil {
		t.Error("extracted_text set on failure")
	}
}

func TestProcessRetryAfterFailure(t *testing.T) {
	stub := &stubTransformer{err: errors.New("down")}
	svc, _ := processEnv(t, stub)
	ctx := context.Background()

	subject, _ := svc.CreateSubject(ctx, "Retry", "")
	a, _ := svc.UploadArtifact(ctx, subject.ID, "note.txt", models.KindText, "", []byte("x"))

	if _, err := svc.Process(ctx, subject.ID, a.ID); err == nil {
		t.Fatal("expected first attempt to fail")
	}

	// The failed artifact can be processed again once the service recovers.
	stub.err = nil
	done, err := svc.Process(ctx, subject.ID, a.ID)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %s", done.Status)
	}
	if done.ErrorDetail != nil {
		t.Error("stale error_detail survived the successful attempt")
	}
}

func TestProcessStatusEventsPublished(t *testing.T) {
	svc, _ := processEnv(t, &stubTransformer{})
	ctx := context.Background()

	var statuses []models.Status
	svc.SetNotifier(func(kind string, data map[string]any) {
		if kind == "artifact.status" {
			statuses = append(statuses, data["status"].(models.Status))
		}
	})

	subject, _ := svc.CreateSubject(ctx, "Live", "")
	a, _ := svc.UploadArtifact(ctx, subject.ID, "note.txt", models.KindText, "", []byte("x"))
	if _, err := svc.Process(ctx, subject.ID, a.ID); err != nil {
		t.Fatal(err)
	}

	if len(statuses) != 2 || statuses[0] != models.StatusProcessing || statuses[1] != models.StatusCompleted {
		t.Errorf("status events = %v", statuses)
	}
}

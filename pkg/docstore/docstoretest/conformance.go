package docstoretest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

// ConformanceLimit is the document size limit Conformance opens stores with
const ConformanceLimit = 512

// Opener returns an empty store whose document limit is maxDocumentBytes.
type Opener func(t *testing.T, maxDocumentBytes int) docstore.Store

// Conformance checks the transactional contract every document host must
// honor. Each subtest gets a fresh store from open.
func Conformance(t *testing.T, open Opener) {
	tests := []struct {
		name string
		run  func(t *testing.T, s docstore.Store)
	}{
		{"ReadYourWrites", testReadYourWrites},
		{"AutoID", testAutoID},
		{"CreateConflict", testCreateConflict},
		{"ReplacePreconditions", testReplacePreconditions},
		{"DeletePreconditions", testDeletePreconditions},
		{"TooLarge", testTooLarge},
		{"QueryByField", testQueryByField},
		{"Rollback", testRollback},
		{"ConcurrentWriterLoses", testConcurrentWriterLoses},
		{"FinishedTx", testFinishedTx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t, ConformanceLimit)
			t.Cleanup(func() { s.Close() })
			tt.run(t, s)
		})
	}
}

func body(fields string) []byte {
	return []byte("{" + fields + "}")
}

func begin(t *testing.T, s docstore.Store) docstore.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return tx
}

func commit(t *testing.T, tx docstore.Tx) {
	t.Helper()
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

// seed commits one document and returns it as stored
func seed(t *testing.T, s docstore.Store, id, fields string) *docstore.Document {
	t.Helper()
	tx := begin(t, s)
	doc, err := tx.Create(context.Background(), &docstore.Document{ID: id, Body: body(fields)}, false)
	if err != nil {
		t.Fatalf("Create %s: %v", id, err)
	}
	commit(t, tx)
	return doc
}

// committed reads id in a fresh transaction; nil means absent
func committed(t *testing.T, s docstore.Store, id string) *docstore.Document {
	t.Helper()
	tx := begin(t, s)
	defer tx.Rollback(context.Background())
	doc, err := tx.Retrieve(context.Background(), id)
	if docstore.IsNotFound(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("Retrieve %s: %v", id, err)
	}
	return doc
}

func testReadYourWrites(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	tx := begin(t, s)

	created, err := tx.Create(ctx, &docstore.Document{ID: "v1", Body: body(`"label":"a"`)}, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ETag == "" || created.PartitionKey != "v1" {
		t.Errorf("created = %+v, want etag and partition defaulted to id", created)
	}

	got, err := tx.Retrieve(ctx, "v1")
	if err != nil {
		t.Fatalf("Retrieve inside tx: %v", err)
	}
	if got.ETag != created.ETag {
		t.Errorf("etag inside tx = %q, want %q", got.ETag, created.ETag)
	}

	if committed(t, s, "v1") != nil {
		t.Error("uncommitted document visible to another transaction")
	}
	commit(t, tx)

	after := committed(t, s, "v1")
	if after == nil {
		t.Fatal("committed document not visible")
	}
	if after.ETag != created.ETag || !strings.Contains(string(after.Body), `"label"`) {
		t.Errorf("committed = %+v", after)
	}
}

func testAutoID(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	tx := begin(t, s)
	defer tx.Rollback(ctx)

	doc, err := tx.Create(ctx, &docstore.Document{Body: body(`"n":1`)}, true)
	if err != nil {
		t.Fatalf("Create autoID: %v", err)
	}
	if doc.ID == "" || doc.PartitionKey != doc.ID {
		t.Errorf("auto id document = %+v", doc)
	}

	if _, err := tx.Create(ctx, &docstore.Document{Body: body(`"n":2`)}, false); err == nil {
		t.Error("expected an error creating without id or autoID")
	}
}

func testCreateConflict(t *testing.T, s docstore.Store) {
	seed(t, s, "v1", `"n":1`)

	tx := begin(t, s)
	defer tx.Rollback(context.Background())
	_, err := tx.Create(context.Background(), &docstore.Document{ID: "v1", Body: body(`"n":2`)}, false)
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("duplicate create err = %v, want ErrConflict", err)
	}
	if docstore.CodeOf(err) == "500" {
		t.Errorf("duplicate create carries no host code: %v", err)
	}
}

func testReplacePreconditions(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	orig := seed(t, s, "v1", `"n":1`)

	tx := begin(t, s)
	if _, err := tx.Replace(ctx, &docstore.Document{ID: "v1", Body: body(`"n":2`)}, "stale"); !errors.Is(err, docstore.ErrPreconditionFailed) {
		t.Fatalf("stale replace err = %v", err)
	}
	if _, err := tx.Replace(ctx, &docstore.Document{ID: "missing", Body: body(`"n":2`)}, ""); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("missing replace err = %v", err)
	}
	tx.Rollback(ctx)

	tx = begin(t, s)
	next, err := tx.Replace(ctx, &docstore.Document{ID: "v1", Body: body(`"n":3`)}, orig.ETag)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if next.ETag == orig.ETag || next.PartitionKey != orig.PartitionKey {
		t.Errorf("replaced = %+v, want new etag and kept partition", next)
	}
	if _, err := tx.Replace(ctx, &docstore.Document{ID: "v1", Body: body(`"n":4`)}, next.ETag); err != nil {
		t.Fatalf("second replace in same tx: %v", err)
	}
	commit(t, tx)

	if got := committed(t, s, "v1"); got == nil || !strings.Contains(string(got.Body), "4") {
		t.Errorf("committed = %+v", got)
	}
}

func testDeletePreconditions(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	orig := seed(t, s, "v1", `"n":1`)

	tx := begin(t, s)
	if err := tx.Delete(ctx, "v1", "stale"); !errors.Is(err, docstore.ErrPreconditionFailed) {
		t.Fatalf("stale delete err = %v", err)
	}
	tx.Rollback(ctx)

	tx = begin(t, s)
	if err := tx.Delete(ctx, "v1", orig.ETag); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tx.Retrieve(ctx, "v1"); !docstore.IsNotFound(err) {
		t.Errorf("retrieve after delete err = %v", err)
	}
	if err := tx.Delete(ctx, "v1", ""); !docstore.IsNotFound(err) {
		t.Errorf("second delete err = %v", err)
	}
	commit(t, tx)

	if committed(t, s, "v1") != nil {
		t.Error("deleted document still committed")
	}
}

func testTooLarge(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	orig := seed(t, s, "v1", `"n":1`)
	big := body(fmt.Sprintf(`"blob":%q`, strings.Repeat("x", ConformanceLimit)))

	tx := begin(t, s)
	if _, err := tx.Create(ctx, &docstore.Document{ID: "v2", Body: big}, false); !docstore.IsTooLarge(err) {
		t.Errorf("large create err = %v", err)
	}
	if _, err := tx.Replace(ctx, &docstore.Document{ID: "v1", Body: big}, orig.ETag); !docstore.IsTooLarge(err) {
		t.Errorf("large replace err = %v", err)
	}
	got, err := tx.Retrieve(ctx, "v1")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.ETag != orig.ETag {
		t.Error("failed replace modified the document")
	}
	commit(t, tx)
}

func testQueryByField(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	seed(t, s, "d2", `"_vertexId":"a"`)
	seed(t, s, "d4", `"_vertexId":"a"`)
	seed(t, s, "d5", `"_vertexId":"b"`)

	tx := begin(t, s)
	defer tx.Rollback(ctx)
	if _, err := tx.Create(ctx, &docstore.Document{ID: "d1", Body: body(`"_vertexId":"a"`)}, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tx.Delete(ctx, "d4", ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	docs, err := tx.QueryByField(ctx, "_vertexId", "a")
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if strings.Join(ids, ",") != "d1,d2" {
		t.Errorf("QueryByField ids = %v, want [d1 d2]", ids)
	}
}

func testRollback(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	orig := seed(t, s, "v1", `"n":1`)

	tx := begin(t, s)
	if _, err := tx.Create(ctx, &docstore.Document{ID: "v2", Body: body(`"n":2`)}, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tx.Delete(ctx, "v1", orig.ETag); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if committed(t, s, "v2") != nil {
		t.Error("rolled back create is visible")
	}
	if got := committed(t, s, "v1"); got == nil || got.ETag != orig.ETag {
		t.Errorf("rolled back delete changed v1: %+v", got)
	}
}

// testConcurrentWriterLoses lets a second batch commit a change to a document
// the first batch already read. The first batch must fail, either at its
// write or at commit, and leave the second batch's state in place.
func testConcurrentWriterLoses(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	seed(t, s, "v1", `"n":1`)

	slow := begin(t, s)
	defer slow.Rollback(ctx)
	read, err := slow.Retrieve(ctx, "v1")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	fast := begin(t, s)
	if _, err := fast.Replace(ctx, &docstore.Document{ID: "v1", Body: body(`"n":2`)}, read.ETag); err != nil {
		t.Fatalf("fast Replace: %v", err)
	}
	commit(t, fast)
	winner := committed(t, s, "v1")

	_, err = slow.Replace(ctx, &docstore.Document{ID: "v1", Body: body(`"n":3`)}, read.ETag)
	if err == nil {
		err = slow.Commit(ctx)
	}
	if !errors.Is(err, docstore.ErrPreconditionFailed) && !errors.Is(err, docstore.ErrNotAccepted) {
		t.Fatalf("losing batch err = %v, want precondition failure or not accepted", err)
	}

	if got := committed(t, s, "v1"); got == nil || got.ETag != winner.ETag {
		t.Errorf("losing batch changed v1: %+v", got)
	}
}

func testFinishedTx(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	tx := begin(t, s)
	commit(t, tx)

	if _, err := tx.Retrieve(ctx, "v1"); !errors.Is(err, docstore.ErrTxDone) {
		t.Errorf("retrieve after commit err = %v, want ErrTxDone", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, docstore.ErrTxDone) {
		t.Errorf("second commit err = %v, want ErrTxDone", err)
	}
}

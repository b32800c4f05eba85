package models

import (
	"testing"
	"time"
)

func TestSearchRequestValidate(t *testing.T) {
	r := &SearchRequest{Query: "hello"}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.Page != 1 || r.PerPage != 20 {
		t.Errorf("defaults: page=%d perPage=%d", r.Page, r.PerPage)
	}

	r = &SearchRequest{Query: "x", PerPage: 500}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.PerPage != 100 {
		t.Errorf("PerPage capped = %d, want 100", r.PerPage)
	}

	r = &SearchRequest{}
	if err := r.Validate(); err == nil {
		t.Error("expected error for empty query without filters")
	}

	// Filter-only requests are valid (e.g. list all PDFs).
	r = &SearchRequest{Filters: Filters{MIMEType: "application/pdf"}}
	if err := r.Validate(); err != nil {
		t.Errorf("filter-only request: %v", err)
	}

	r = &SearchRequest{Query: "x", Filters: Filters{MinSize: 100, MaxSize: 10}}
	if err := r.Validate(); err == nil {
		t.Error("expected error for inverted size range")
	}
}

func TestChangeOpString(t *testing.T) {
	cases := map[ChangeOp]string{
		OpCreated:    "created",
		OpModified:   "modified",
		OpRemoved:    "removed",
		OpRenamed:    "renamed",
		ChangeOp(99): "unknown",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", op, got, want)
		}
	}
}

func TestFiltersZeroMeansUnconstrained(t *testing.T) {
	var f Filters
	if f != (Filters{}) {
		t.Error("zero Filters should compare equal to empty literal")
	}
	f.ModifiedAfter = time.Now()
	if f == (Filters{}) {
		t.Error("non-zero Filters should not compare equal to empty literal")
	}
}

package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestTaskStatusOf(t *testing.T) {
	task := Task{
		Incomplete: map[string]string{"u1": ""},
		Pending:    map[string]string{"u2": "done?"},
		Complete:   map[string]string{"u3": "ok"},
	}

	cases := map[string]string{
		"u1": StatusIncomplete,
		"u2": StatusPending,
		"u3": StatusComplete,
	}
	for id, want := range cases {
		got, ok := task.StatusOf(id)
		if !ok {
			t.Fatalf("expected %s to be a recipient", id)
		}
		if got != want {
			t.Fatalf("expected %s status %s, got %s", id, want, got)
		}
	}

	if _, ok := task.StatusOf("stranger"); ok {
		t.Fatal("expected non-recipient lookup to report false")
	}
}

func TestTaskRecipientsSpanAllStatuses(t *testing.T) {
	task := Task{
		Incomplete: map[string]string{"u1": ""},
		Pending:    map[string]string{"u2": ""},
		Complete:   map[string]string{"u3": ""},
	}
	got := task.Recipients()
	if len(got) != 3 {
		t.Fatalf("expected 3 recipients, got %v", got)
	}
	seen := map[string]bool{}
	for _, id := range got {
		seen[id] = true
	}
	for _, id := range []string{"u1", "u2", "u3"} {
		if !seen[id] {
			t.Fatalf("expected recipient %s in %v", id, got)
		}
	}
}

func TestTaskMarshalIncludesEmptyStatusMaps(t *testing.T) {
	task := Task{
		ID:         "t1",
		Name:       "Inventory",
		Incomplete: map[string]string{"u1": ""},
		Pending:    map[string]string{},
		Complete:   map[string]string{},
	}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	// A reader must always see all three maps so recipients can be located.
	if !strings.Contains(string(payload), "\"pending\":{}") {
		t.Fatalf("expected pending map to be present, got %s", payload)
	}
	if !strings.Contains(string(payload), "\"complete\":{}") {
		t.Fatalf("expected complete map to be present, got %s", payload)
	}
}
